package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/controllers"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/middleware"
	checkoutsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/checkout"
	coinsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	inventorysvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	ordersvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/orders"
	paymentsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/payments"
	roomsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     controllers.Pinger
	Checkout  checkoutsvc.Service
	Payments  paymentsvc.Service
	Orders    ordersvc.Service
	Rooms     roomsvc.Service
	Coins     coinsvc.Service
	Inventory inventorysvc.Service
	Hub       *roomsvc.Hub
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", controllers.RazorpayWebhook(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Post("/payments/confirm", controllers.ConfirmPayment(deps.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(deps.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, logg))
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/{roomID}/join", controllers.JoinRoom(deps.Rooms, logg))
			r.Post("/{roomID}/orders", controllers.LinkRoomOrder(deps.Rooms, logg))
			r.Get("/{roomID}/progress", controllers.RoomProgress(deps.Rooms, logg))
			r.Get("/{roomID}/subscribe", controllers.SubscribeRoom(deps.Rooms, deps.Hub, logg))
			r.With(middleware.RequireAdmin(logg)).
				Post("/{roomID}/unlock", controllers.ForceUnlockRoom(deps.Rooms, logg))
		})

		r.Route("/coins", func(r chi.Router) {
			r.Get("/balance", controllers.CoinBalance(deps.Coins, logg))
			r.Get("/history", controllers.CoinHistory(deps.Coins, logg))
		})

		r.Get("/products/{productID}/availability", controllers.ProductAvailability(deps.Inventory, logg))
	})

	return r
}
