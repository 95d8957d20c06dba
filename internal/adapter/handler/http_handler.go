package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rl1809/shop-cart/internal/core/service"
	"github.com/rl1809/shop-cart/internal/port"
)

type HTTPHandler struct {
	users   *service.UserService
	catalog *service.CatalogService
	carts   *service.CartService
	orders  *service.OrderService
	tokens  port.TokenService
	log     zerolog.Logger
}

type Services struct {
	Users   *service.UserService
	Catalog *service.CatalogService
	Carts   *service.CartService
	Orders  *service.OrderService
}

type RouterOptions struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type CreateUserRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ModifyCartRequest struct {
	Username string `json:"username"`
	ItemID   int64  `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(svc Services, tokens port.TokenService, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		users:   svc.Users,
		catalog: svc.Catalog,
		carts:   svc.Carts,
		orders:  svc.Orders,
		tokens:  tokens,
		log:     log,
	}
}

// Routes builds the full router. Everything except health, signup and login
// sits behind AuthGate.
func (h *HTTPHandler) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(h.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Authorization"},
			AllowCredentials: true,
		}).Handler)
	}

	r.Get("/health", h.HealthCheck)
	r.Post("/login", h.Login)
	r.Post("/api/user/create", h.CreateUser)

	r.Group(func(r chi.Router) {
		r.Use(AuthGate(h.tokens))

		r.Get("/api/item", h.ListItems)
		r.Get("/api/item/{id}", h.GetItem)
		r.Get("/api/item/name/{name}", h.GetItemsByName)

		r.Get("/api/user/id/{id}", h.GetUserByID)
		r.Get("/api/user/{username}", h.GetUserByUsername)

		r.Post("/api/cart/addToCart", h.AddToCart)
		r.Post("/api/cart/removeFromCart", h.RemoveFromCart)
		r.Get("/api/cart/{username}", h.GetCart)

		r.Post("/api/order/submit/{username}", h.SubmitOrder)
		r.Get("/api/order/history/{username}", h.OrderHistory)
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Login answers with an empty body and the token in the Authorization header.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Authorization", bearerPrefix+token)
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListItems(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) GetItemsByName(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.FindItemsByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) GetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCartRequest(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.AddToCart(r.Context(), req.Username, req.ItemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCartRequest(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveFromCart(r.Context(), req.Username, req.ItemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	h.noteForeignUser(r, username)

	cart, err := h.carts.GetCart(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	h.noteForeignUser(r, username)

	order, err := h.orders.Submit(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	h.noteForeignUser(r, username)

	orders, err := h.orders.History(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) decodeCartRequest(w http.ResponseWriter, r *http.Request) (ModifyCartRequest, bool) {
	var req ModifyCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return req, false
	}
	h.noteForeignUser(r, req.Username)
	return req, true
}

// noteForeignUser logs when a caller acts on another user's resources.
// Such requests are allowed.
func (h *HTTPHandler) noteForeignUser(r *http.Request, username string) {
	caller, ok := UsernameFromContext(r.Context())
	if ok && caller != username {
		hlog.FromRequest(r).Debug().Str("caller", caller).Str("username", username).
			Msg("request targets another user")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, port.ErrInvalidToken):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrUserExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Message: "username already taken"})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, service.ErrInvalidInput
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
