// Package httpserver exposes the incentive services over HTTP. Identity
// arrives as a signed session token; everything after the auth gate speaks
// the domain types.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goodhaul/incentive/internal/authgate"
	"github.com/goodhaul/incentive/internal/metrics"
	"github.com/goodhaul/incentive/pkg/incentive"
)

// Services groups the domain services the handlers dispatch to.
type Services struct {
	Ledger       *incentive.LedgerService
	Orders       *incentive.OrderService
	Cart         *incentive.CartService
	Catalog      *incentive.CatalogService
	Applications *incentive.ApplicationService
}

// Config holds the HTTP surface settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Server is the assembled HTTP facade.
type Server struct {
	logger   *zap.Logger
	services Services
	config   Config
	router   *gin.Engine
}

// New wires the router. The validator guards every /api route; metrics may be
// nil when scraping is not wanted.
func New(logger *zap.Logger, config Config, services Services, validator *authgate.Validator, collectors *metrics.Metrics) *Server {
	server := &Server{logger: logger, services: services, config: config}
	server.router = server.setupRouter(validator, collectors)
	return server
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.config.ListenAddr,
		Handler: server.router,
	}
	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http server listening", zap.String("addr", server.config.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		timeout := server.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			server.logger.Warn("server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Router exposes the engine for tests.
func (server *Server) Router() http.Handler {
	return server.router
}

func (server *Server) setupRouter(validator *authgate.Validator, collectors *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if collectors != nil {
		router.Use(collectors.GinMiddleware())
	}
	if len(server.config.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     server.config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if collectors != nil {
		router.GET("/metrics", gin.WrapH(collectors.Handler()))
	}

	api := router.Group("/api")
	api.Use(validator.GinMiddleware())

	api.GET("/drivers/:driverID/balance", server.handleBalance)
	api.GET("/drivers/:driverID/points", server.handleListPointChanges)
	api.POST("/drivers/:driverID/points", server.handleApplyPointChange)
	api.POST("/drivers/:driverID/drop", server.handleDropDriver)

	api.GET("/cart", server.handleCart)
	api.POST("/cart/items", server.handleAddCartItem)
	api.PATCH("/cart/items/:itemID", server.handleSetCartItemQuantity)
	api.DELETE("/cart/items/:itemID", server.handleRemoveCartItem)

	api.POST("/orders", server.handleCheckout)
	api.GET("/orders", server.handleListDriverOrders)
	api.GET("/orders/:orderID", server.handleGetOrder)
	api.POST("/orders/:orderID/status", server.handleTransitionStatus)
	api.POST("/orders/:orderID/cancel", server.handleCancelByDriver)
	api.POST("/orders/:orderID/refund-requests", server.handleRequestRefund)
	api.POST("/refund-requests/:requestID/resolve", server.handleResolveRefundRequest)

	api.GET("/catalog", server.handleVisibleProducts)
	api.POST("/sponsors/:sponsorID/products", server.handleAddProduct)
	api.GET("/sponsors/:sponsorID/products", server.handleSponsorProducts)
	api.PATCH("/products/:productID", server.handleUpdateProduct)
	api.DELETE("/products/:productID", server.handleRemoveProduct)
	api.PUT("/sponsors/:sponsorID/point-value", server.handleSetPointValue)

	api.POST("/sponsors/:sponsorID/applications", server.handleApply)
	api.GET("/sponsors/:sponsorID/applications", server.handlePendingApplications)
	api.POST("/applications/:applicationID/approve", server.handleApproveApplication)
	api.POST("/applications/:applicationID/reject", server.handleRejectApplication)

	api.GET("/sponsors/:sponsorID/orders", server.handleListSponsorOrders)
	api.GET("/sponsors/:sponsorID/refund-requests", server.handleListRefundRequests)

	return router
}

func (server *Server) actor(ctx *gin.Context) (incentive.Actor, bool) {
	actor, ok := authgate.ActorFromContext(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
	}
	return actor, ok
}

func (server *Server) handleBalance(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	driverProfileID, err := incentive.NewDriverProfileID(ctx.Param("driverID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	balance, err := server.services.Ledger.Balance(ctx.Request.Context(), actor, driverProfileID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"points_balance": balance})
}

func (server *Server) handleListPointChanges(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	driverProfileID, err := incentive.NewDriverProfileID(ctx.Param("driverID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	changes, err := server.services.Ledger.ListPointChanges(ctx.Request.Context(), actor, driverProfileID, 100)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]pointChangePayload, 0, len(changes))
	for _, change := range changes {
		payload = append(payload, toPointChangePayload(change))
	}
	ctx.JSON(http.StatusOK, gin.H{"point_changes": payload})
}

func (server *Server) handleApplyPointChange(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	driverProfileID, err := incentive.NewDriverProfileID(ctx.Param("driverID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var request pointChangeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, err := incentive.NewPoints(request.Amount)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	reason, err := incentive.NewReason(request.Reason)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.services.Ledger.ApplyPointChange(ctx.Request.Context(), actor, driverProfileID, amount, reason); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "applied"})
}

func (server *Server) handleDropDriver(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	driverProfileID, err := incentive.NewDriverProfileID(ctx.Param("driverID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.services.Applications.Drop(ctx.Request.Context(), actor, driverProfileID); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "dropped"})
}

func (server *Server) handleCart(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	items, totalPoints, err := server.services.Cart.Cart(ctx.Request.Context(), actor)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": toCartItemPayloads(items), "total_points": totalPoints})
}

func (server *Server) handleAddCartItem(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	var request addCartItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := server.services.Cart.AddItem(ctx.Request.Context(), actor, request.ProductID, request.Quantity); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (server *Server) handleSetCartItemQuantity(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	var request quantityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := server.services.Cart.SetItemQuantity(ctx.Request.Context(), actor, ctx.Param("itemID"), request.Quantity); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (server *Server) handleRemoveCartItem(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	if err := server.services.Cart.RemoveItem(ctx.Request.Context(), actor, ctx.Param("itemID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (server *Server) handleCheckout(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	var request checkoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	order, err := server.services.Orders.Checkout(ctx.Request.Context(), actor, request.DeliveryInfo)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": toOrderPayload(order)})
}

func (server *Server) handleListDriverOrders(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	orders, err := server.services.Orders.ListOrdersForDriver(ctx.Request.Context(), actor)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": toOrderPayloads(orders)})
}

func (server *Server) handleGetOrder(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	orderID, err := incentive.NewOrderID(ctx.Param("orderID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	order, items, err := server.services.Orders.GetOrder(ctx.Request.Context(), actor, orderID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": toOrderPayload(order), "items": toOrderItemPayloads(items)})
}

func (server *Server) handleTransitionStatus(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	orderID, err := incentive.NewOrderID(ctx.Param("orderID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var request statusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	newStatus, err := incentive.ParseOrderStatus(request.Status)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.services.Orders.TransitionStatus(ctx.Request.Context(), actor, orderID, newStatus); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": newStatus.String()})
}

func (server *Server) handleCancelByDriver(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	orderID, err := incentive.NewOrderID(ctx.Param("orderID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.services.Orders.CancelByDriver(ctx.Request.Context(), actor, orderID); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (server *Server) handleRequestRefund(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	orderID, err := incentive.NewOrderID(ctx.Param("orderID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var request refundRequestBody
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := server.services.Orders.RequestRefund(ctx.Request.Context(), actor, orderID, request.Reason)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"refund_request": toRefundRequestPayload(created)})
}

func (server *Server) handleResolveRefundRequest(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	var request resolveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := server.services.Orders.ResolveRefundRequest(ctx.Request.Context(), actor, ctx.Param("requestID"), request.Approve); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (server *Server) handleVisibleProducts(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	products, err := server.services.Catalog.VisibleProducts(ctx.Request.Context(), actor)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": toVisibleProductPayloads(products)})
}

func (server *Server) handleAddProduct(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var request productRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	price, err := decimal.NewFromString(request.Price)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_price", "price must be a decimal string"))
		return
	}
	product, err := server.services.Catalog.AddProduct(ctx.Request.Context(), actor, incentive.CatalogProduct{
		SponsorID:  sponsorID,
		EbayItemID: request.EbayItemID,
		Title:      request.Title,
		ImageURL:   request.ImageURL,
		Price:      price,
		IsActive:   true,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"product": toProductPayload(product)})
}

func (server *Server) handleSponsorProducts(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	products, err := server.services.Catalog.SponsorProducts(ctx.Request.Context(), actor, sponsorID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": toProductPayloads(products)})
}

func (server *Server) handleUpdateProduct(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	var request productUpdateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	productID := ctx.Param("productID")
	if request.Title != nil {
		if err := server.services.Catalog.RenameProduct(ctx.Request.Context(), actor, productID, *request.Title); err != nil {
			server.respondError(ctx, err)
			return
		}
	}
	if request.IsActive != nil {
		if err := server.services.Catalog.SetProductActive(ctx.Request.Context(), actor, productID, *request.IsActive); err != nil {
			server.respondError(ctx, err)
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (server *Server) handleRemoveProduct(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	if err := server.services.Catalog.RemoveProduct(ctx.Request.Context(), actor, ctx.Param("productID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (server *Server) handleSetPointValue(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	var request pointValueRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	pointValue, err := decimal.NewFromString(request.PointValue)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_point_value", "point value must be a decimal string"))
		return
	}
	if err := server.services.Catalog.SetSponsorPointValue(ctx.Request.Context(), actor, sponsorID, pointValue); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (server *Server) handleApply(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	application, err := server.services.Applications.Apply(ctx.Request.Context(), actor, sponsorID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"application": toApplicationPayload(application)})
}

func (server *Server) handlePendingApplications(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	applications, err := server.services.Applications.PendingApplications(ctx.Request.Context(), actor, sponsorID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"applications": toApplicationPayloads(applications)})
}

func (server *Server) handleApproveApplication(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	if err := server.services.Applications.Approve(ctx.Request.Context(), actor, ctx.Param("applicationID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (server *Server) handleRejectApplication(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	if err := server.services.Applications.Reject(ctx.Request.Context(), actor, ctx.Param("applicationID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (server *Server) handleListSponsorOrders(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	orders, err := server.services.Orders.ListOrdersForSponsor(ctx.Request.Context(), actor, sponsorID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": toOrderPayloads(orders)})
}

func (server *Server) handleListRefundRequests(ctx *gin.Context) {
	actor, ok := server.actor(ctx)
	if !ok {
		return
	}
	sponsorID, err := incentive.NewSponsorID(ctx.Param("sponsorID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	requests, err := server.services.Orders.ListRefundRequests(ctx.Request.Context(), actor, sponsorID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"refund_requests": toRefundRequestPayloads(requests)})
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
