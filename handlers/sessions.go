package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/appctx"
	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/middlewares"
	"github.com/mmdatafocus/pos_backend/posapi"
	"github.com/mmdatafocus/pos_backend/refdata"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

type PromotionLister interface {
	ListActivePromotions(ctx context.Context) ([]checkout.PromotionMeta, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Locker serializes checkouts that touch the same customer, across every
// register and instance. The returned release func is never nil when err is
// nil.
type Locker func(ctx context.Context, customerID string, ttl time.Duration) (release func(), err error)

// codeCustomerBusy answers a checkout whose customer is settling elsewhere.
const codeCustomerBusy = "CUSTOMER_BUSY"

// RedisLocker takes the customer checkout lock through redislock.
func RedisLocker(ctx context.Context, customerID string, ttl time.Duration) (func(), error) {
	lock, err := utils.ObtainLock(ctx, customerID, "pos_customer_checkout", ttl, "handlers", "Checkout")
	if err != nil {
		return nil, err
	}
	return func() { utils.ReleaseLock(ctx, lock) }, nil
}

// API serves the register session endpoints.
type API struct {
	Sessions      *Registry
	Lookup        refdata.Lookup
	PointSettings checkout.PointSettingsSource
	Promotions    PromotionLister
	RefData       Invalidator
	Lock          Locker
	LockTTL       time.Duration
	Lang          language.Tag
	Logger        logrus.FieldLogger
}

// Register mounts the routes on r, which is expected to sit behind
// middlewares.AuthMiddleware.
func (a *API) Register(r gin.IRouter) {
	s := r.Group("/sessions")
	s.POST("", a.createSession)
	s.GET("/:id", a.withSession(a.getSession))
	s.DELETE("/:id", a.withSession(a.deleteSession))
	s.POST("/:id/reset", a.withSession(a.resetSession))

	s.POST("/:id/items", a.withSession(a.addItem))
	s.PUT("/:id/items/:productId/weight", a.withSession(a.setWeight))
	s.PUT("/:id/items/:productId/quantity", a.withSession(a.setQuantity))
	s.DELETE("/:id/items/:productId", a.withSession(a.removeItem))

	s.GET("/:id/promotions/eligible", a.withSession(a.eligiblePromotions))
	s.POST("/:id/promotions", a.withSession(a.applyPromotion))
	s.DELETE("/:id/promotions/:code", a.withSession(a.removePromotion))

	s.PUT("/:id/customer", a.withSession(a.attachCustomer))
	s.DELETE("/:id/customer", a.withSession(a.detachCustomer))
	s.PUT("/:id/points", a.withSession(a.setPoints))

	s.POST("/:id/payments", a.withSession(a.addPayment))
	s.DELETE("/:id/payments/:index", a.withSession(a.removePayment))

	s.POST("/:id/checkout", a.withSession(a.checkoutSession))
	s.GET("/:id/receipt", a.withSession(a.lastReceipt))

	r.GET("/customers", a.searchCustomers)
	r.GET("/promotions/active", a.activePromotions)
	r.POST("/refdata/refresh", a.refreshRefData)
}

type sessionHandler func(c *gin.Context, e *Entry)

// withSession resolves :id, checks the caller may use it and tags the
// request context with the session id.
func (a *API) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		e, ok := a.Sessions.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		claim := middlewares.StaffClaim(c)
		if claim == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if claim.StaffID != e.OwnerID && !isSupervisor(claim.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another cashier"})
			return
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeySessionId, id)
		c.Request = c.Request.WithContext(ctx)
		h(c, e)
	}
}

func isSupervisor(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin", "supervisor", "owner":
		return true
	}
	return false
}

func (a *API) createSession(c *gin.Context) {
	claim := middlewares.StaffClaim(c)
	if claim == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var settings checkout.PointSettings
	if a.PointSettings != nil {
		s, err := a.PointSettings.GetPointSettings(c.Request.Context())
		if err != nil {
			// Redemption stays unconfigured for this session.
			config.LogError(a.logger(), "handlers", "createSession", "point settings", claim.StaffID, err)
		} else {
			settings = s
		}
	}
	e := a.Sessions.Create(checkout.Staff{ID: claim.StaffID, Name: claim.StaffName}, settings)
	c.JSON(http.StatusCreated, newSessionView(e, a.lang()))
}

func (a *API) getSession(c *gin.Context, e *Entry) {
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) deleteSession(c *gin.Context, e *Entry) {
	e.Session.Reset(c.Request.Context())
	a.Sessions.Remove(e.Session.ID)
	c.Status(http.StatusNoContent)
}

func (a *API) resetSession(c *gin.Context, e *Entry) {
	e.Session.Reset(c.Request.Context())
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type addItemRequest struct {
	ProductId string `json:"productId" validate:"required_without=Sku"`
	Sku       string `json:"sku"`
}

func (a *API) addItem(c *gin.Context, e *Entry) {
	var req addItemRequest
	if !a.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var (
		p     checkout.Product
		found bool
		err   error
	)
	if strings.TrimSpace(req.ProductId) != "" {
		p, found, err = a.Lookup.FindProduct(ctx, req.ProductId)
	} else {
		p, found, err = a.Lookup.FindProductBySKU(ctx, req.Sku)
	}
	if err != nil {
		a.upstreamError(c, "addItem", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err := e.Session.AddProduct(ctx, p); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type setWeightRequest struct {
	Grams decimal.Decimal `json:"grams"`
}

func (a *API) setWeight(c *gin.Context, e *Entry) {
	var req setWeightRequest
	if !a.bind(c, &req) {
		return
	}
	if err := e.Session.SetWeight(c.Request.Context(), c.Param("productId"), req.Grams); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (a *API) setQuantity(c *gin.Context, e *Entry) {
	var req setQuantityRequest
	if !a.bind(c, &req) {
		return
	}
	if err := e.Session.SetQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) removeItem(c *gin.Context, e *Entry) {
	if err := e.Session.RemoveLine(c.Request.Context(), c.Param("productId")); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) eligiblePromotions(c *gin.Context, e *Entry) {
	active, ok := a.listActive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": newPromotionMetaViews(e.Session.EligiblePromotions(active))})
}

func (a *API) activePromotions(c *gin.Context) {
	active, ok := a.listActive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": newPromotionMetaViews(active)})
}

func (a *API) listActive(c *gin.Context) ([]checkout.PromotionMeta, bool) {
	if a.Promotions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "promotions unavailable"})
		return nil, false
	}
	active, err := a.Promotions.ListActivePromotions(c.Request.Context())
	if err != nil {
		a.upstreamError(c, "listActive", err)
		return nil, false
	}
	return active, true
}

type applyPromotionRequest struct {
	Code string `json:"code" validate:"required"`
}

func (a *API) applyPromotion(c *gin.Context, e *Entry) {
	var req applyPromotionRequest
	if !a.bind(c, &req) {
		return
	}
	if _, err := e.Session.ApplyPromotion(c.Request.Context(), req.Code); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) removePromotion(c *gin.Context, e *Entry) {
	if err := e.Session.RemovePromotion(c.Request.Context(), c.Param("code")); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type attachCustomerRequest struct {
	CustomerId string `json:"customerId" validate:"required_without=Phone"`
	Phone      string `json:"phone"`
}

func (a *API) attachCustomer(c *gin.Context, e *Entry) {
	var req attachCustomerRequest
	if !a.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var (
		cust  checkout.Customer
		found bool
		err   error
	)
	if strings.TrimSpace(req.CustomerId) != "" {
		cust, found, err = a.Lookup.FindCustomer(ctx, req.CustomerId)
	} else {
		region := a.Lookup.Region
		if region == "" {
			region = utils.CountryCode
		}
		if perr := utils.ValidatePhoneNumber(req.Phone, region); perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
			return
		}
		cust, found, err = a.Lookup.FindCustomerByPhone(ctx, req.Phone)
	}
	if err != nil {
		a.upstreamError(c, "attachCustomer", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}
	if err := e.Session.AttachCustomer(ctx, cust); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) detachCustomer(c *gin.Context, e *Entry) {
	if err := e.Session.DetachCustomer(c.Request.Context()); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type setPointsRequest struct {
	Points int64 `json:"points" validate:"gte=0"`
}

func (a *API) setPoints(c *gin.Context, e *Entry) {
	var req setPointsRequest
	if !a.bind(c, &req) {
		return
	}
	if _, err := e.Session.SetPointsToRedeem(c.Request.Context(), req.Points); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type addPaymentRequest struct {
	Method    string      `json:"method" validate:"omitempty,oneof=tunai transfer qris debit kredit"`
	Amount    interface{} `json:"amount" validate:"required"`
	Reference string      `json:"reference"`
}

func (a *API) addPayment(c *gin.Context, e *Entry) {
	var req addPaymentRequest
	if !a.bind(c, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount", "fields": map[string]string{"amount": err.Error()}})
		return
	}
	p := checkout.Payment{
		Method:    checkout.PaymentMethod(strings.ToLower(req.Method)),
		Amount:    amount,
		Reference: req.Reference,
	}
	if err := e.Session.AddPayment(c.Request.Context(), p); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

func (a *API) removePayment(c *gin.Context, e *Entry) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment index"})
		return
	}
	if err := e.Session.RemovePayment(c.Request.Context(), index); err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(e, a.lang()))
}

type checkoutRequest struct {
	Note string `json:"note" validate:"max=255"`
}

func (a *API) checkoutSession(c *gin.Context, e *Entry) {
	var req checkoutRequest
	// The body is optional.
	if c.Request.ContentLength != 0 && !a.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	// Two registers redeeming one customer's points serialize on the
	// customer, and the balance is read again while the lock is held.
	if cust, ok := e.Session.Loyalty.Customer(); ok {
		if a.Lock != nil {
			release, err := a.Lock(ctx, cust.ID, a.lockTTL())
			if errors.Is(err, utils.ErrLockNotObtained) {
				c.JSON(http.StatusConflict, gin.H{"error": "customer is checking out at another register", "code": codeCustomerBusy})
				return
			}
			if err != nil {
				config.LogError(a.logger(), "handlers", "checkoutSession", "obtain lock", cust.ID, err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not lock customer"})
				return
			}
			defer release()
		}
		fresh, found, err := a.Lookup.FindCustomer(ctx, cust.ID)
		if err != nil {
			a.upstreamError(c, "checkoutSession", err)
			return
		}
		if found {
			if err := e.Session.RefreshCustomer(ctx, fresh); err != nil {
				a.engineError(c, e, err)
				return
			}
		}
	}

	receipt, err := e.Session.Checkout(ctx, checkout.CheckoutInput{Note: req.Note, CashierName: e.Session.Staff.Name})
	if err != nil {
		a.engineError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, newReceiptView(receipt, e.Notices(), a.lang()))
}

func (a *API) lastReceipt(c *gin.Context, e *Entry) {
	receipt, ok := e.Session.LastReceipt()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no settled transaction yet"})
		return
	}
	c.JSON(http.StatusOK, newReceiptView(receipt, nil, a.lang()))
}

func (a *API) searchCustomers(c *gin.Context) {
	customers, err := a.Lookup.SearchCustomers(c.Request.Context(), c.Query("q"))
	if err != nil {
		a.upstreamError(c, "searchCustomers", err)
		return
	}
	out := make([]customerView, 0, len(customers))
	for _, cust := range customers {
		out = append(out, newCustomerView(cust))
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (a *API) refreshRefData(c *gin.Context) {
	if a.RefData == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := a.RefData.Invalidate(c.Request.Context()); err != nil {
		config.LogError(a.logger(), "handlers", "refreshRefData", "invalidate", "", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	if err := utils.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

// engineError answers a rejected session operation with the error code and
// the notices the operation raised.
func (a *API) engineError(c *gin.Context, e *Entry, err error) {
	notices := newNoticeViews(e.Notices(), a.lang())
	var ce *checkout.Error
	if !errors.As(err, &ce) {
		config.LogError(a.logger(), "handlers", c.HandlerName(), "session operation", e.Session.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "notices": notices})
		return
	}
	c.JSON(statusFor(ce.Code), gin.H{"error": ce.Error(), "code": ce.Code, "notices": notices})
}

func (a *API) upstreamError(c *gin.Context, funcName string, err error) {
	config.LogError(a.logger(), "handlers", funcName, "reference data", "", err)
	status := http.StatusBadGateway
	if posapi.IsUnavailable(err) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": "backend unavailable"})
}

func statusFor(code checkout.ErrorCode) int {
	switch code {
	case checkout.CodeLineNotFound, checkout.CodePromotionNotApplied:
		return http.StatusNotFound
	case checkout.CodeSessionBusy, checkout.CodeSessionSettled, checkout.CodeDuplicatePromotion, checkout.CodeBalanceChanged:
		return http.StatusConflict
	case checkout.CodeOracleUnavailable:
		return http.StatusServiceUnavailable
	case checkout.CodeCommitFailed:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) lang() language.Tag {
	if a.Lang == language.Und {
		return language.Indonesian
	}
	return a.Lang
}

func (a *API) lockTTL() time.Duration {
	if a.LockTTL <= 0 {
		return 30 * time.Second
	}
	return a.LockTTL
}

func (a *API) logger() *logrus.Logger {
	if l, ok := a.Logger.(*logrus.Logger); ok && l != nil {
		return l
	}
	return config.GetLogger()
}
