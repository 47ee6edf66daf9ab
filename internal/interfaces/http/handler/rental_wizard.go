package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rentalapp "github.com/rentdesk/backend/internal/application/rental"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/interfaces/http/router"
)

// RentalWizardHandler serves the contract authoring wizard
type RentalWizardHandler struct {
	BaseHandler
	service *rentalapp.WizardService
}

// NewRentalWizardHandler creates a new RentalWizardHandler
func NewRentalWizardHandler(service *rentalapp.WizardService) *RentalWizardHandler {
	return &RentalWizardHandler{service: service}
}

// Routes returns the rental route group
func (h *RentalWizardHandler) Routes() *router.DomainGroup {
	routes := router.NewDomainGroup("rental", "/rental")
	routes.GET("/properties", h.SearchProperties)
	routes.POST("/derive", h.Derive)
	routes.POST("/validate", h.Validate)

	wizards := routes.Group("wizards", "/wizards/:key")
	wizards.GET("", h.Open)
	wizards.DELETE("", h.Discard)
	wizards.PUT("/inputs", h.UpdateInputs)
	wizards.POST("/property", h.SelectProperty)
	wizards.POST("/unit", h.SelectUnit)
	wizards.POST("/tenant", h.SelectTenant)
	wizards.POST("/cheques/rent", h.GenerateRentCheques)
	wizards.PUT("/cheques/:list/:index/number", h.EditChequeNumber)
	wizards.POST("/cheques/deposit", h.AddDepositCheque)
	wizards.DELETE("/cheques/:list/:index", h.RemoveDepositCheque)
	wizards.PUT("/cheques/:list/:index/date", h.SetDepositChequeDate)
	wizards.POST("/advance", h.Advance)
	wizards.GET("/issues", h.Issues)
	wizards.GET("/summary", h.Summary)
	wizards.POST("/flush", h.Flush)
	wizards.POST("/submit", h.Submit)
	return routes
}

func (h *RentalWizardHandler) indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		h.BadRequest(c, "Cheque index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

// depositIndexParam reads the index of a deposit cheque; rent cheques follow the schedule
func (h *RentalWizardHandler) depositIndexParam(c *gin.Context) (int, bool) {
	if rentalapp.ChequeList(c.Param("list")) != rentalapp.ChequeListDeposit {
		h.BadRequest(c, "Only deposit cheques can be removed or dated")
		return 0, false
	}
	return h.indexParam(c)
}

func (h *RentalWizardHandler) selectedID(c *gin.Context) (uuid.UUID, bool) {
	var req SelectRecordRequest
	if !h.BindJSON(c, &req) {
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// Open godoc
// @Summary      Open a contract wizard
// @Description  Returns the wizard session for key, restoring a saved draft when one exists
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key} [get]
func (h *RentalWizardHandler) Open(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	view, err := h.service.Open(c.Request.Context(), orgID, c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Discard godoc
// @Summary      Discard a contract wizard
// @Description  Drops the session and its saved draft
// @Tags         rental-wizard
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      204
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key} [delete]
func (h *RentalWizardHandler) Discard(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	if err := h.service.Discard(c.Request.Context(), orgID, c.Param("key")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UpdateInputs godoc
// @Summary      Update draft inputs
// @Description  Applies the given primary inputs atomically; omitted fields keep their value
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body rentalapp.DraftInput true "Draft inputs"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/inputs [put]
func (h *RentalWizardHandler) UpdateInputs(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var in rentalapp.DraftInput
	if !h.BindJSON(c, &in) {
		return
	}
	view, err := h.service.UpdateInputs(c.Request.Context(), orgID, c.Param("key"), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SelectProperty godoc
// @Summary      Select the property
// @Description  Selects the property; a single-unit property held by an open contract is rejected
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body SelectRecordRequest true "Property"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/property [post]
func (h *RentalWizardHandler) SelectProperty(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	id, ok := h.selectedID(c)
	if !ok {
		return
	}
	view, err := h.service.SelectProperty(c.Request.Context(), orgID, c.Param("key"), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SelectUnit godoc
// @Summary      Select the unit
// @Description  Selects a unit of the selected property unless an open contract holds it
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body SelectRecordRequest true "Unit"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/unit [post]
func (h *RentalWizardHandler) SelectUnit(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	id, ok := h.selectedID(c)
	if !ok {
		return
	}
	view, err := h.service.SelectUnit(c.Request.Context(), orgID, c.Param("key"), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SelectTenant godoc
// @Summary      Select the tenant
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body SelectRecordRequest true "Tenant"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Router       /rental/wizards/{key}/tenant [post]
func (h *RentalWizardHandler) SelectTenant(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	id, ok := h.selectedID(c)
	if !ok {
		return
	}
	view, err := h.service.SelectTenant(c.Request.Context(), orgID, c.Param("key"), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// GenerateRentCheques godoc
// @Summary      Generate rent cheques
// @Description  Rebuilds the rent cheque schedule from the current inputs
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/cheques/rent [post]
func (h *RentalWizardHandler) GenerateRentCheques(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	view, err := h.service.GenerateRentCheques(c.Request.Context(), orgID, c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// EditChequeNumber godoc
// @Summary      Edit a cheque number
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        list path string true "Cheque list" Enums(rent, deposit)
// @Param        index path int true "Cheque index"
// @Param        request body ChequeNumberRequest true "Cheque number"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Router       /rental/wizards/{key}/cheques/{list}/{index}/number [put]
func (h *RentalWizardHandler) EditChequeNumber(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	var req ChequeNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}
	list := rentalapp.ChequeList(c.Param("list"))
	view, err := h.service.EditChequeNumber(c.Request.Context(), orgID, c.Param("key"), list, index, req.CheckNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// AddDepositCheque godoc
// @Summary      Add a deposit cheque
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body AddDepositChequeRequest true "Deposit cheque"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/cheques/deposit [post]
func (h *RentalWizardHandler) AddDepositCheque(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var req AddDepositChequeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := h.service.AddDepositCheque(c.Request.Context(), orgID, c.Param("key"), req.CheckNumber, *req.Amount, req.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// RemoveDepositCheque godoc
// @Summary      Remove a deposit cheque
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        index path int true "Cheque index"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Router       /rental/wizards/{key}/cheques/deposit/{index} [delete]
func (h *RentalWizardHandler) RemoveDepositCheque(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	index, ok := h.depositIndexParam(c)
	if !ok {
		return
	}
	view, err := h.service.RemoveDepositCheque(c.Request.Context(), orgID, c.Param("key"), index)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SetDepositChequeDate godoc
// @Summary      Date a deposit cheque
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        index path int true "Cheque index"
// @Param        request body DepositChequeDateRequest true "Cheque date"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Router       /rental/wizards/{key}/cheques/deposit/{index}/date [put]
func (h *RentalWizardHandler) SetDepositChequeDate(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	index, ok := h.depositIndexParam(c)
	if !ok {
		return
	}
	var req DepositChequeDateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := h.service.SetDepositChequeDate(c.Request.Context(), orgID, c.Param("key"), index, req.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Advance godoc
// @Summary      Move to another step
// @Description  Moving back is always allowed; moving forward requires every earlier step to pass
// @Tags         rental-wizard
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        request body AdvanceRequest true "Target step"
// @Success      200 {object} dto.Response{data=rentalapp.DraftView}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/advance [post]
func (h *RentalWizardHandler) Advance(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var req AdvanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	step, _ := rental.ParseStep(req.Step)
	view, err := h.service.Advance(c.Request.Context(), orgID, c.Param("key"), step)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Issues godoc
// @Summary      List missing or invalid fields
// @Description  Lists the issues of one step, or of every step when step is omitted
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Param        step query string false "Step" Enums(parties, terms, payments, municipal, review)
// @Success      200 {object} dto.Response{data=IssuesResponse}
// @Router       /rental/wizards/{key}/issues [get]
func (h *RentalWizardHandler) Issues(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var query IssuesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "step must be one of: parties terms payments municipal review")
		return
	}
	var step *rental.Step
	if query.Step != "" {
		s, _ := rental.ParseStep(query.Step)
		step = &s
	}
	issues, err := h.service.Issues(c.Request.Context(), orgID, c.Param("key"), step)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newIssuesResponse(query.Step, issues))
}

// Summary godoc
// @Summary      Get the financial summary
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      200 {object} dto.Response{data=rental.FinancialSummary}
// @Router       /rental/wizards/{key}/summary [get]
func (h *RentalWizardHandler) Summary(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), orgID, c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Flush godoc
// @Summary      Save the draft now
// @Description  Writes the pending draft snapshot without waiting for the debounce
// @Tags         rental-wizard
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      204
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/flush [post]
func (h *RentalWizardHandler) Flush(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	if err := h.service.Flush(c.Request.Context(), orgID, c.Param("key")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Submit godoc
// @Summary      Submit the contract
// @Description  Re-validates every step, checks for an open contract and creates the contract
// @Tags         rental-wizard
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        key path string true "Wizard key"
// @Success      201 {object} dto.Response{data=rentalapp.SubmitResult}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /rental/wizards/{key}/submit [post]
func (h *RentalWizardHandler) Submit(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), orgID, c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// SearchProperties godoc
// @Summary      Search properties
// @Description  Matches code or name case-insensitively
// @Tags         rental
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        q query string false "Search text"
// @Param        limit query int false "Maximum results" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]PropertyResponse}
// @Router       /rental/properties [get]
func (h *RentalWizardHandler) SearchProperties(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var query PropertySearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "limit must be between 1 and 100")
		return
	}
	properties, err := h.service.SearchProperties(c.Request.Context(), orgID, rental.PropertySearch{
		Query: query.Query,
		Limit: query.Limit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPropertyResponses(properties))
}

// Derive godoc
// @Summary      Derive financials
// @Description  Derives financials, the rent cheque schedule and every issue for a set of inputs without opening a wizard
// @Tags         rental
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        request body rentalapp.DraftInput true "Draft inputs"
// @Success      200 {object} dto.Response{data=rentalapp.PreviewView}
// @Router       /rental/derive [post]
func (h *RentalWizardHandler) Derive(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var in rentalapp.DraftInput
	if !h.BindJSON(c, &in) {
		return
	}
	preview, err := h.service.Preview(orgID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Validate godoc
// @Summary      Validate inputs
// @Description  Lists every missing or invalid field of a set of inputs
// @Tags         rental
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string true "Organization ID" format(uuid)
// @Param        request body rentalapp.DraftInput true "Draft inputs"
// @Success      200 {object} dto.Response{data=IssuesResponse}
// @Router       /rental/validate [post]
func (h *RentalWizardHandler) Validate(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	var in rentalapp.DraftInput
	if !h.BindJSON(c, &in) {
		return
	}
	preview, err := h.service.Preview(orgID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newIssuesResponse("", preview.Issues))
}
