package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ibills/backoffice/internal/adapter/identity"
	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/core/service"
)

type Handler struct {
	sessions  *service.SessionManager
	sales     *service.SaleService
	inventory *service.InventoryService
	customers *service.CustomerService
	employees *service.EmployeeService
	reports   *service.ReportService
	log       *logrus.Logger
}

func New(
	sessions *service.SessionManager,
	sales *service.SaleService,
	inventory *service.InventoryService,
	customers *service.CustomerService,
	employees *service.EmployeeService,
	reports *service.ReportService,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		sessions:  sessions,
		sales:     sales,
		inventory: inventory,
		customers: customers,
		employees: employees,
		reports:   reports,
		log:       log,
	}
}

// Register wires every route onto the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	auth := r.Group("/api/auth")
	{
		auth.POST("/signin", h.SignIn)
		auth.POST("/signup", h.SignUp)
		auth.POST("/signout", h.SignOut)
		auth.POST("/refresh", h.RefreshClaims)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
	}

	api := r.Group("/api", h.Authenticate())
	{
		api.GET("/session", h.Session)
		api.GET("/catalog", h.ListCatalog)

		admin := api.Group("", RequireCapability(domain.CapabilityAdministrator))
		{
			admin.GET("/inventory", h.ListInventory)
			admin.POST("/inventory", h.CreateInventoryItem)
			admin.PATCH("/inventory/:id", h.UpdateInventoryItem)
			admin.GET("/employees", h.ListEmployees)
			admin.GET("/employees/:id", h.GetEmployee)
			admin.PATCH("/employees/:id", h.UpdateEmployee)
			admin.GET("/reports/revenue", h.RevenueReport)
			admin.GET("/reports/stock", h.StockReport)
		}

		api.GET("/customers", h.ListCustomers)
		api.POST("/customers", h.CreateCustomer)
		api.PATCH("/customers/:id", h.UpdateCustomer)

		sale := api.Group("/sale", RequireCapability(domain.CapabilitySalesAgent))
		{
			sale.GET("", h.Draft)
			sale.POST("/snapshot", h.LoadSnapshot)
			sale.POST("/lines", h.AddLine)
			sale.PUT("/lines/:itemID", h.SetQuantity)
			sale.DELETE("/lines/:itemID", h.RemoveLine)
			sale.PUT("/customer", h.SetCustomer)
			sale.PUT("/notes", h.SetNotes)
			sale.POST("/submit", h.Submit)
		}
		api.GET("/sales", h.ListSales)
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Session domain.Session `json:"session"`
	Token   string         `json:"token,omitempty"`
}

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, token, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.fail(c, "SignIn", err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Session: session, Token: token})
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	IsAdmin  bool   `json:"isAdmin"`
	IsSales  bool   `json:"isSales"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	claims := domain.Claims{Administrator: req.IsAdmin, Sales: req.IsSales}
	session, token, err := h.sessions.SignUp(c.Request.Context(), req.Name, req.Email, req.Password, claims)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.fail(c, "SignUp", err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{Session: session, Token: token})
}

func (h *Handler) SignOut(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"status": "signed out"})
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), raw); err != nil {
		h.fail(c, "SignOut", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

// RefreshClaims forces re-acquisition of the claims from the identity
// provider. Callers invoke it after any operation that could change role
// flags server-side.
func (h *Handler) RefreshClaims(c *gin.Context) {
	raw := bearerToken(c)
	session, err := h.sessions.Refresh(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, service.ErrNotSignedIn) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.fail(c, "RefreshClaims", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: session})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword issues a reset token for the account. There is no mail
// collaborator in this service, so the token rides back in the response and
// the deployment's front door handles delivery.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.sessions.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no account for that email"})
			return
		}
		h.fail(c, "ForgotPassword", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resetToken": token})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.sessions.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired reset token"})
			return
		}
		h.fail(c, "ResetPassword", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password reset"})
}

func (h *Handler) Session(c *gin.Context) {
	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, sessionResponse{Session: session})
}

func (h *Handler) ListCatalog(c *gin.Context) {
	items, err := h.inventory.InStock(c.Request.Context())
	if err != nil {
		h.fail(c, "ListCatalog", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": withIDs(items, func(i domain.InventoryItem) (string, domain.InventoryItem) { return i.ID, i })})
}

func (h *Handler) ListInventory(c *gin.Context) {
	items, err := h.inventory.List(c.Request.Context())
	if err != nil {
		h.fail(c, "ListInventory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": withIDs(items, func(i domain.InventoryItem) (string, domain.InventoryItem) { return i.ID, i })})
}

type createItemRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	SKU           string          `json:"sku"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price" binding:"required"`
	Stock         int             `json:"stock" binding:"min=0"`
	MinStockLevel int             `json:"minStockLevel" binding:"min=0"`
}

func (h *Handler) CreateInventoryItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	id, err := h.inventory.Create(c.Request.Context(), domain.InventoryItem{
		Name:          req.Name,
		Description:   req.Description,
		SKU:           req.SKU,
		Category:      req.Category,
		UnitPrice:     req.Price,
		StockLevel:    req.Stock,
		MinStockLevel: req.MinStockLevel,
	})
	if err != nil {
		h.fail(c, "CreateInventoryItem", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) UpdateInventoryItem(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.inventory.Update(c.Request.Context(), c.Param("id"), partial); err != nil {
		h.fail(c, "UpdateInventoryItem", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) ListCustomers(c *gin.Context) {
	var (
		customers []domain.Customer
		err       error
	)
	if name := c.Query("name"); name != "" {
		customers, err = h.customers.SearchByName(c.Request.Context(), name)
	} else {
		customers, err = h.customers.List(c.Request.Context())
	}
	if err != nil {
		h.fail(c, "ListCustomers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": withIDs(customers, func(cu domain.Customer) (string, domain.Customer) { return cu.ID, cu })})
}

type createCustomerRequest struct {
	Name    string          `json:"name" binding:"required"`
	Email   string          `json:"email" binding:"omitempty,email"`
	Phone   string          `json:"phone" binding:"required"`
	Address *domain.Address `json:"address"`
	Notes   string          `json:"notes"`
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.customers.Create(c.Request.Context(), domain.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		h.fail(c, "CreateCustomer", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.customers.Update(c.Request.Context(), c.Param("id"), partial); err != nil {
		h.fail(c, "UpdateCustomer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) ListEmployees(c *gin.Context) {
	employees, err := h.employees.List(c.Request.Context())
	if err != nil {
		h.fail(c, "ListEmployees", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": withIDs(employees, func(e domain.Employee) (string, domain.Employee) { return e.ID, e })})
}

func (h *Handler) GetEmployee(c *gin.Context) {
	employee, err := h.employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "GetEmployee", err)
		return
	}
	if employee == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": employee.ID, "employee": employee})
}

// UpdateEmployee is the server-side role change path: after an admin flips
// isAdmin or isSales here, the affected operator picks it up via
// /api/auth/refresh.
func (h *Handler) UpdateEmployee(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// Credential changes go through the reset flow, never a raw patch.
	delete(partial, "passwordHash")

	if err := h.employees.Update(c.Request.Context(), c.Param("id"), partial); err != nil {
		h.fail(c, "UpdateEmployee", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) Draft(c *gin.Context) {
	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"draft": h.sales.Draft(session.Identity)})
}

func (h *Handler) LoadSnapshot(c *gin.Context) {
	session, _ := sessionFrom(c)
	if err := h.sales.LoadSnapshot(c.Request.Context(), session.Identity); err != nil {
		h.fail(c, "LoadSnapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"catalog": h.sales.Catalog(session.Identity)})
}

type addLineRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

// AddLine is a silent no-op when the item is not in the loaded snapshot:
// the draft comes back unchanged with a 200.
func (h *Handler) AddLine(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"draft": h.sales.AddLine(session.Identity, req.ItemID)})
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) SetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"draft": h.sales.SetQuantity(session.Identity, c.Param("itemID"), *req.Quantity)})
}

func (h *Handler) RemoveLine(c *gin.Context) {
	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"draft": h.sales.RemoveLine(session.Identity, c.Param("itemID"))})
}

type setCustomerRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
}

func (h *Handler) SetCustomer(c *gin.Context) {
	var req setCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, _ := sessionFrom(c)
	draft, err := h.sales.SetCustomer(session.Identity, req.CustomerID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "customer not in loaded snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

type setNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) SetNotes(c *gin.Context) {
	var req setNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, _ := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"draft": h.sales.SetNotes(session.Identity, req.Notes)})
}

func (h *Handler) Submit(c *gin.Context) {
	session, _ := sessionFrom(c)
	sale, err := h.sales.Submit(c.Request.Context(), session.Identity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyDraft):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "draft has no lines"})
		case errors.Is(err, service.ErrNoCustomer):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no customer selected"})
		case errors.Is(err, service.ErrSubmitInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "submission already in flight"})
		default:
			// Persistence failure: the draft is untouched, the operator
			// retries the action.
			h.fail(c, "Submit", err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": sale.ID, "sale": sale})
}

func (h *Handler) ListSales(c *gin.Context) {
	session, _ := sessionFrom(c)
	sales, err := h.sales.ListSales(c.Request.Context(), session.Identity)
	if err != nil {
		h.fail(c, "ListSales", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": withIDs(sales, func(s domain.Sale) (string, domain.Sale) { return s.ID, s })})
}

func (h *Handler) RevenueReport(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	switch c.DefaultQuery("range", "week") {
	case "month":
		from = to.AddDate(0, -1, 0)
	case "year":
		from = to.AddDate(-1, 0, 0)
	}

	rows, err := h.reports.RevenueByWeekday(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "RevenueReport", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) StockReport(c *gin.Context) {
	rows, err := h.reports.StockByCategory(c.Request.Context())
	if err != nil {
		h.fail(c, "StockReport", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) fail(c *gin.Context, funcName string, err error) {
	h.log.WithFields(logrus.Fields{
		"module":   "handler",
		"funcName": funcName,
		"path":     c.FullPath(),
	}).Error(err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func bearerToken(c *gin.Context) string {
	auth := c.Request.Header.Get("Authorization")
	const bearer = "Bearer "
	if len(auth) > len(bearer) && auth[:len(bearer)] == bearer {
		return auth[len(bearer):]
	}
	return ""
}

// withIDs pairs each record with its document id for serialization.
type identified[T any] struct {
	ID     string `json:"id"`
	Record T      `json:"record"`
}

func withIDs[T any](records []T, split func(T) (string, T)) []identified[T] {
	out := make([]identified[T], 0, len(records))
	for _, r := range records {
		id, rec := split(r)
		out = append(out, identified[T]{ID: id, Record: rec})
	}
	return out
}
