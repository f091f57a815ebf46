package bridge

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter настраивает роутинг моста
func (h *Handler) SetupRouter(webDir string) *mux.Router {
	r := mux.NewRouter()

	// Применяем CORS middleware ко всем маршрутам
	r.Use(CORS)

	// Публичные маршруты
	r.HandleFunc("/api/auth", h.HandleAuth).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Защищенные маршруты (токен текущей сессии)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.Auth)

	api.HandleFunc("/status", h.HandleStatus).Methods("GET")
	api.HandleFunc("/network", h.HandleNetwork).Methods("POST")
	api.HandleFunc("/logout", h.HandleLogout).Methods("POST")
	api.HandleFunc("/sync", h.HandleSync).Methods("POST")

	// Profile
	api.HandleFunc("/user", h.HandleGetUser).Methods("GET")
	api.HandleFunc("/user", h.HandleUpdateUser).Methods("PUT")
	api.HandleFunc("/user/settings", h.HandleUpdateSettings).Methods("PUT")

	// Trades
	api.HandleFunc("/trade", h.HandleListTrades).Methods("GET")
	api.HandleFunc("/trade", h.HandleCreateTrade).Methods("POST")
	api.HandleFunc("/trade/{id}", h.HandleGetTrade).Methods("GET")
	api.HandleFunc("/trade/{id:[0-9]+}", h.HandleTradeAction).Methods("PUT")

	// Payments
	api.HandleFunc("/payment", h.HandleListPayments).Methods("GET")
	api.HandleFunc("/payment", h.HandleCreatePayment).Methods("POST")

	// Push канал
	api.Handle("/ws", h.hub).Methods("GET")

	// Статические файлы (должны быть в конце)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(webDir)))

	return r
}

// HandleHealth возвращает статус моста и режим ядра
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondSuccess(w, "OK", map[string]string{
		"status": "healthy",
		"mode":   string(h.core.Gate.Mode()),
	})
}
