package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	adjustmentctrl "larder/internal/adjustment/controller"
	inventoryctrl "larder/internal/inventory/controller"
	orderctrl "larder/internal/order/controller"
	"larder/internal/product"
)

func NewRouter(
	productCtrl *product.Controller,
	inventoryCtrl *inventoryctrl.InventoryController,
	orderCtrl *orderctrl.OrderController,
	adjustmentCtrl *adjustmentctrl.AdjustmentController,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/search", productCtrl.HandleSearchProducts)
			r.Get("/{productId}", productCtrl.HandleGetProduct)
			r.Get("/{productId}/stock", inventoryCtrl.StockLevels)
			r.Get("/{productId}/transactions", inventoryCtrl.Transactions)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", inventoryCtrl.ReceiveBatch)
			r.Post("/{batchId}/deactivate", inventoryCtrl.DeactivateBatch)
			r.Post("/{batchId}/adjust", inventoryCtrl.AdjustBatch)
		})

		r.Get("/inventory/low-stock", inventoryCtrl.LowStock)
		r.Get("/inventory/expiring", inventoryCtrl.Expiring)

		r.Post("/damaged-goods", inventoryCtrl.RecordDamage)
		r.Delete("/damaged-goods/{damagedGoodsId}", inventoryCtrl.DeleteDamage)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderCtrl.Create)
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", orderCtrl.Get)
				r.Post("/confirm", orderCtrl.Confirm)
				r.Post("/cancel", orderCtrl.Cancel)
				r.Post("/delivery", orderCtrl.AssignDelivery)
				r.Post("/ship", orderCtrl.Ship)
				r.Post("/deliver", orderCtrl.Deliver)
				r.Post("/complete", orderCtrl.Complete)
				r.Post("/returns", orderCtrl.Return)
			})
		})

		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", adjustmentCtrl.List)
			r.Post("/", adjustmentCtrl.Create)
			r.Get("/summary", adjustmentCtrl.Summary)
			r.Put("/{adjustmentId}", adjustmentCtrl.Update)
			r.Delete("/{adjustmentId}", adjustmentCtrl.Delete)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
