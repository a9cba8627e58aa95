package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/enums/paymethod"
	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger     apt.Logger
	config     *apt.Config
	tlm        *telemetry.HTTP
	store      *DraftStore
	workflows  *WorkflowRegistry
	coord      *PersistenceCoordinator
	splits     *SplitOrchestrator
	splitsSvc  SplitService
	payAll     *PayAllQueue
	tabs       *TabOrchestrator
	gateway    PaymentGateway
	kitchen    KitchenDispatcher
	orders     OrderStore
	openOrders *OpenOrdersCache
	publisher  events.Publisher
}

type HandlerDeps struct {
	Store        *DraftStore
	Workflows    *WorkflowRegistry
	Coordinator  *PersistenceCoordinator
	Splits       *SplitOrchestrator
	SplitService SplitService
	PayAll       *PayAllQueue
	Tabs         *TabOrchestrator
	Gateway      PaymentGateway
	Kitchen      KitchenDispatcher
	Orders       OrderStore
	OpenOrders   *OpenOrdersCache
	Publisher    events.Publisher
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &Handler{
		config:     config,
		logger:     logger,
		tlm:        telemetry.NewHTTP(),
		store:      hd.Store,
		workflows:  hd.Workflows,
		coord:      hd.Coordinator,
		splits:     hd.Splits,
		splitsSvc:  hd.SplitService,
		payAll:     hd.PayAll,
		tabs:       hd.Tabs,
		gateway:    hd.Gateway,
		kitchen:    hd.Kitchen,
		orders:     hd.Orders,
		openOrders: hd.OpenOrders,
		publisher:  hd.Publisher,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/draft", func(r chi.Router) {
		r.Get("/", h.GetDraft)
		r.Patch("/", h.UpdateDraft)
		r.Post("/reset", h.ResetDraft)
		r.Post("/send", h.SendDraft)
		r.Post("/pay", h.PayDraft)

		r.Route("/items", func(r chi.Router) {
			r.Post("/", h.AddDraftItem)
			r.Patch("/{id}", h.UpdateDraftItem)
			r.Delete("/{id}", h.VoidDraftItem)
			r.Post("/{id}/comp", h.CompDraftItem)
		})
	})

	r.Route("/splits", func(r chi.Router) {
		r.Post("/", h.CreateSplit)
		r.Get("/", h.ListSplits)
		r.Post("/{id}/select", h.SelectSplit)
		r.Post("/{id}/pay", h.PayOneSplit)
		r.Post("/settle", h.SettleAllSplits)
		r.Post("/manage", h.EnterManage)
		r.Delete("/manage", h.ExitManage)
	})

	r.Route("/pay-all", func(r chi.Router) {
		r.Get("/", h.GetPayAllState)
		r.Post("/start", h.StartPayAll)
		r.Post("/confirm", h.ConfirmPayAll)
		r.Post("/pay", h.PayAllCurrent)
		r.Post("/cancel", h.CancelPayAll)
	})

	r.Post("/tabs/start", h.StartTab)

	r.Route("/open-orders", func(r chi.Router) {
		r.Get("/", h.ListOpenOrders)
		r.Get("/attention", h.ListAttentionOrders)
		r.Post("/{id}/resolve", h.ResolveOpenOrder)
	})
}

// Request payloads

type DraftPatchRequest struct {
	OrderType  *string  `json:"order_type,omitempty"`
	TableID    *TableID `json:"table_id,omitempty"`
	TabName    *string  `json:"tab_name,omitempty"`
	GuestCount *int     `json:"guest_count,omitempty"`
}

type DraftItemRequest struct {
	MenuItemID MenuItemID `json:"menu_item_id"`
	Name       string     `json:"name"`
	Price      float64    `json:"price"`
	Quantity   int        `json:"quantity"`
	Modifiers  []string   `json:"modifiers,omitempty"`
	SeatNumber int        `json:"seat_number,omitempty"`
}

type DraftItemPatchRequest struct {
	Quantity   *int  `json:"quantity,omitempty"`
	SeatNumber *int  `json:"seat_number,omitempty"`
	IsHeld     *bool `json:"is_held,omitempty"`
}

type PayRequest struct {
	Method string `json:"method"`
}

type SettleRequest struct {
	Method string       `json:"method"`
	Card   *CardDetails `json:"card,omitempty"`
}

// DraftView is what the operator screen polls: the working order plus the
// workflow rules for its type and the split chips when it is a parent.
type DraftView struct {
	Draft  DraftOrder    `json:"draft"`
	Rules  WorkflowRules `json:"rules"`
	Chips  []SplitChip   `json:"chips,omitempty"`
	Manage bool          `json:"manage"`
}

// SendResult reports a completed kitchen send.
type SendResult struct {
	OrderID   OrderID `json:"order_id"`
	Number    string  `json:"number,omitempty"`
	LinesSent int     `json:"lines_sent"`
	Status    string  `json:"status"`
}

// Draft handlers

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	w, _, finish := h.tlm.Start(w, r, "Handler.GetDraft")
	defer finish()

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateDraft")
	defer finish()

	log := h.log(r)

	req, ok := h.decodeDraftPatchPayload(w, r, log)
	if !ok {
		return
	}

	if req.OrderType != nil {
		h.store.SetOrderType(*req.OrderType)
	}
	if req.TableID != nil {
		h.store.SetTable(*req.TableID)
	}
	if req.TabName != nil {
		h.store.SetTabName(*req.TabName)
	}
	if req.GuestCount != nil {
		h.store.SetGuestCount(*req.GuestCount)
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) AddDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddDraftItem")
	defer finish()

	log := h.log(r)

	req, ok := h.decodeDraftItemPayload(w, r, log)
	if !ok {
		return
	}

	if req.MenuItemID == uuid.Nil {
		apt.RespondError(w, http.StatusBadRequest, "menu_item_id is required")
		return
	}
	if req.Name == "" {
		apt.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	item, err := h.store.AddItem(DraftItem{
		MenuItemID: req.MenuItemID,
		Name:       req.Name,
		Price:      req.Price,
		Quantity:   req.Quantity,
		Modifiers:  req.Modifiers,
		SeatNumber: req.SeatNumber,
	})
	if err != nil {
		log.Info("item refused", "error", err)
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, item)
}

func (h *Handler) UpdateDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateDraftItem")
	defer finish()

	log := h.log(r)

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	req, ok := h.decodeDraftItemPatchPayload(w, r, log)
	if !ok {
		return
	}

	if req.Quantity != nil {
		if err := h.store.UpdateItemQuantity(itemID, *req.Quantity); err != nil {
			h.respondError(w, err)
			return
		}
	}
	if req.SeatNumber != nil {
		if err := h.store.AssignSeat(itemID, *req.SeatNumber); err != nil {
			h.respondError(w, err)
			return
		}
	}
	if req.IsHeld != nil {
		if err := h.store.HoldItem(itemID, *req.IsHeld); err != nil {
			h.respondError(w, err)
			return
		}
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) VoidDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VoidDraftItem")
	defer finish()

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	if err := h.store.VoidItem(itemID); err != nil {
		apt.RespondError(w, http.StatusNotFound, "Item not found")
		return
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) CompDraftItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CompDraftItem")
	defer finish()

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	if err := h.store.CompItem(itemID); err != nil {
		apt.RespondError(w, http.StatusNotFound, "Item not found")
		return
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResetDraft")
	defer finish()

	log := h.log(r)

	snapshot := h.store.Snapshot()
	if snapshot.Persisted() {
		// The persisted order stays open server-side; only the local
		// context is discarded. It remains visible on the open-orders
		// list for reconciliation.
		log.Info("draft reset with persisted order left open",
			"order_id", snapshot.ID.String(),
			"number", snapshot.Number,
		)
	}

	h.store.Reset()
	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) SendDraft(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SendDraft")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	snapshot := h.store.Snapshot()
	rules := h.workflows.Rules(snapshot.OrderType)

	check := ValidateKitchenSend(snapshot, rules)
	if !check.Valid {
		log.Info("kitchen send refused", "reason", check.Reason)
		apt.RespondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s: %s", check.Reason, check.Message))
		return
	}

	orderID, err := h.coord.EnsureOrder(ctx)
	if err != nil {
		log.Error("cannot persist draft order", "error", err)
		h.respondError(w, err)
		return
	}

	if err := h.coord.AppendUnsent(ctx); err != nil {
		log.Error("cannot append draft items", "error", err, "order_id", orderID.String())
		h.respondError(w, err)
		return
	}

	// Re-read so the kitchen ticket carries server item ids.
	snapshot = h.store.Snapshot()
	sendable := snapshot.SendableItems()

	employeeID := h.employeeID(r)
	if err := h.orders.SendToKitchen(ctx, orderID, employeeID); err != nil {
		log.Error("cannot send order to kitchen", "error", err, "order_id", orderID.String())
		h.respondError(w, &PersistenceError{Op: "send", Err: err})
		return
	}

	if h.kitchen != nil {
		ticket := KitchenDispatch{
			OrderID:    orderID,
			Number:     snapshot.Number,
			OrderType:  snapshot.OrderType,
			TabName:    snapshot.TabName,
			TableID:    snapshot.TableID,
			EmployeeID: employeeID,
		}
		for _, it := range sendable {
			ticket.Lines = append(ticket.Lines, KitchenDispatchLine{
				ItemID:     it.ID,
				MenuItemID: it.MenuItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				SeatNumber: it.SeatNumber,
				Modifiers:  it.Modifiers,
			})
		}
		if err := h.kitchen.Dispatch(ctx, ticket); err != nil {
			log.Error("cannot queue kitchen ticket", "error", err, "order_id", orderID.String())
		}
	}

	h.publishOrderLifecycle(r, event.EventOrderSent, orderID, snapshot, StatusSent)

	// Send-complete closes out the working draft; the order lives on the
	// open-orders list from here.
	h.store.Reset()

	apt.RespondSuccess(w, SendResult{
		OrderID:   orderID,
		Number:    snapshot.Number,
		LinesSent: len(sendable),
		Status:    StatusSent,
	})
}

func (h *Handler) PayDraft(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PayDraft")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	req, ok := h.decodePayPayload(w, r, log)
	if !ok {
		return
	}
	if !h.validMethod(w, req.Method) {
		return
	}

	snapshot := h.store.Snapshot()
	if snapshot.Status == StatusSplit {
		apt.RespondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("%s: pay the split checks instead", ReasonSplitParentLocked))
		return
	}
	if len(snapshot.ActiveItems()) == 0 {
		apt.RespondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("%s: order has no items to pay for", ReasonNoItems))
		return
	}

	orderID, err := h.coord.EnsureOrder(ctx)
	if err != nil {
		log.Error("cannot persist draft order", "error", err)
		h.respondError(w, err)
		return
	}
	if err := h.coord.AppendUnsent(ctx); err != nil {
		log.Error("cannot append draft items", "error", err, "order_id", orderID.String())
		h.respondError(w, err)
		return
	}

	receipt, err := h.gateway.Pay(ctx, orderID, req.Method)
	if err != nil {
		log.Info("payment failed", "error", err, "order_id", orderID.String())
		h.respondError(w, err)
		return
	}

	wasSent := snapshot.Status == StatusSent
	h.store.MarkPaid()
	h.publishOrderLifecycle(r, event.EventOrderPaid, orderID, snapshot, StatusPaid)

	// Payment-first workflows pay before the kitchen send; those keep the
	// draft so the send can still happen. Otherwise paying settles the
	// order and the terminal moves on.
	if wasSent || !h.workflows.Rules(snapshot.OrderType).RequiresPaymentFirst {
		h.store.Reset()
	}

	apt.RespondSuccess(w, receipt)
}

// Split handlers

func (h *Handler) CreateSplit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateSplit")
	defer finish()

	log := h.log(r)

	chip, err := h.splits.CreateSplit(r.Context())
	if err != nil {
		log.Info("cannot create split", "error", err)
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, chip)
}

func (h *Handler) ListSplits(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListSplits")
	defer finish()

	log := h.log(r)

	snapshot := h.store.Snapshot()
	if !snapshot.Persisted() {
		apt.RespondCollection(w, []SplitChip{}, "split")
		return
	}

	chips, err := h.splits.RefreshChips(r.Context(), snapshot.ID)
	if err != nil {
		log.Error("cannot refresh split chips", "error", err)
		chips = h.splits.Chips(snapshot.ID)
	}

	apt.RespondCollection(w, chips, "split")
}

func (h *Handler) SelectSplit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SelectSplit")
	defer finish()

	log := h.log(r)

	splitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid split ID")
		return
	}

	if _, known := h.splits.parentOf(splitID); !known {
		apt.RespondError(w, http.StatusNotFound, "Split not found")
		return
	}

	if _, err := h.splits.SelectSplit(r.Context(), splitID); err != nil {
		log.Info("cannot select split", "error", err, "split_id", splitID.String())
		h.respondError(w, err)
		return
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) PayOneSplit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PayOneSplit")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	splitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid split ID")
		return
	}

	// When this split is the head of an active pay-all run, the payment
	// advances the queue instead of acting standalone.
	if state := h.payAll.State(); state.Active && state.Step == PayStepPaying &&
		state.Index < len(state.Queue) && state.Queue[state.Index] == splitID {
		h.payThroughQueue(w, r)
		return
	}

	req, ok := h.decodePayPayload(w, r, log)
	if !ok {
		return
	}
	if !h.validMethod(w, req.Method) {
		return
	}

	parentID, known := h.splits.parentOf(splitID)
	if !known {
		apt.RespondError(w, http.StatusNotFound, "Split not found")
		return
	}

	receipt, err := h.gateway.Pay(ctx, splitID, req.Method)
	if err != nil {
		log.Info("split payment failed", "error", err, "split_id", splitID.String())
		h.respondError(w, err)
		return
	}

	if _, err := h.splits.MarkPaid(splitID); err != nil {
		log.Error("paid split missing from chip state", "error", err, "split_id", splitID.String())
	}
	chip := h.splits.chip(parentID, splitID)
	h.splits.publishSplitEvent(ctx, event.EventSplitPaid, chip, req.Method)
	h.splits.DissolveIfSettled(ctx, parentID)

	apt.RespondSuccess(w, receipt)
}

func (h *Handler) SettleAllSplits(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SettleAllSplits")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	req, ok := h.decodeSettlePayload(w, r, log)
	if !ok {
		return
	}
	if !h.validMethod(w, req.Method) {
		return
	}

	snapshot := h.store.Snapshot()
	if snapshot.Status != StatusSplit {
		apt.RespondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("%s: active order is not split into checks", ReasonSplitParentLocked))
		return
	}

	result, err := h.splitsSvc.PayAllSplits(ctx, snapshot.ID, req.Method, req.Card)
	if err != nil {
		log.Error("bulk settle failed", "error", err, "order_id", snapshot.ID.String())
		h.respondError(w, err)
		return
	}

	// The service settled every child at once; pull the paid flags back
	// and tear the parent down.
	if _, err := h.splits.RefreshChips(ctx, snapshot.ID); err != nil {
		log.Error("cannot refresh split chips after settle", "error", err)
	}
	h.splits.DissolveIfSettled(ctx, snapshot.ID)

	apt.RespondSuccess(w, result)
}

func (h *Handler) EnterManage(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.EnterManage")
	defer finish()

	log := h.log(r)

	snapshot := h.store.Snapshot()
	if err := h.splits.EnterManage(snapshot.ID); err != nil {
		log.Info("cannot enter manage mode", "error", err)
		apt.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	apt.RespondSuccess(w, h.draftView())
}

func (h *Handler) ExitManage(w http.ResponseWriter, r *http.Request) {
	w, _, finish := h.tlm.Start(w, r, "Handler.ExitManage")
	defer finish()

	h.splits.ExitManage(h.store.Snapshot().ID)
	apt.RespondSuccess(w, h.draftView())
}

// Pay-all handlers

func (h *Handler) GetPayAllState(w http.ResponseWriter, r *http.Request) {
	w, _, finish := h.tlm.Start(w, r, "Handler.GetPayAllState")
	defer finish()

	apt.RespondSuccess(w, h.payAll.State())
}

func (h *Handler) StartPayAll(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StartPayAll")
	defer finish()

	log := h.log(r)

	state, err := h.payAll.Start(r.Context())
	if err != nil {
		log.Info("cannot start pay-all", "error", err)
		h.respondError(w, err)
		return
	}

	apt.RespondSuccess(w, state)
}

func (h *Handler) ConfirmPayAll(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ConfirmPayAll")
	defer finish()

	log := h.log(r)

	req, ok := h.decodePayPayload(w, r, log)
	if !ok {
		return
	}
	if !h.validMethod(w, req.Method) {
		return
	}

	state, err := h.payAll.Confirm(req.Method)
	if err != nil {
		log.Info("cannot confirm pay-all", "error", err)
		h.respondError(w, err)
		return
	}

	apt.RespondSuccess(w, state)
}

func (h *Handler) PayAllCurrent(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PayAllCurrent")
	defer finish()

	h.payThroughQueue(w, r)
}

func (h *Handler) CancelPayAll(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelPayAll")
	defer finish()

	log := h.log(r)

	state := h.payAll.Cancel()
	log.Info("pay-all cancelled", "paid", len(state.Paid), "queued", len(state.Queue))

	apt.RespondSuccess(w, state)
}

// PayAllStepResult is the response for one pay-all cycle. Receipt is only
// set after the last split settles.
type PayAllStepResult struct {
	Receipt *ReceiptData `json:"receipt,omitempty"`
	State   PayAllState  `json:"state"`
}

func (h *Handler) payThroughQueue(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)

	receipt, state, err := h.payAll.PayCurrent(r.Context())
	if err != nil {
		var declined *PaymentDeclinedError
		if errors.As(err, &declined) {
			// Queue position is preserved; the operator retries the
			// same split.
			log.Info("pay-all decline, queue holding position",
				"order_id", declined.OrderID.String(),
				"reason", declined.Reason,
			)
		}
		h.respondError(w, err)
		return
	}

	apt.RespondSuccess(w, PayAllStepResult{Receipt: receipt, State: state})
}

// Tab handlers

func (h *Handler) StartTab(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StartTab")
	defer finish()

	log := h.log(r)

	result, err := h.tabs.StartTabWithCard(r.Context(), h.employeeID(r))
	if err != nil {
		log.Info("cannot start tab", "error", err)
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, result)
}

// Open-orders handlers

func (h *Handler) ListOpenOrders(w http.ResponseWriter, r *http.Request) {
	w, _, finish := h.tlm.Start(w, r, "Handler.ListOpenOrders")
	defer finish()

	apt.RespondCollection(w, h.openOrders.List(), "open-order")
}

func (h *Handler) ListAttentionOrders(w http.ResponseWriter, r *http.Request) {
	w, _, finish := h.tlm.Start(w, r, "Handler.ListAttentionOrders")
	defer finish()

	apt.RespondCollection(w, h.openOrders.Attention(), "open-order")
}

func (h *Handler) ResolveOpenOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResolveOpenOrder")
	defer finish()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	if !h.openOrders.Resolve(orderID) {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	entry, _ := h.openOrders.Get(orderID)
	apt.RespondSuccess(w, entry)
}

// Helpers

func (h *Handler) draftView() DraftView {
	snapshot := h.store.Snapshot()
	view := DraftView{
		Draft: snapshot,
		Rules: h.workflows.Rules(snapshot.OrderType),
	}
	if snapshot.Persisted() {
		view.Chips = h.splits.Chips(snapshot.ID)
		view.Manage = h.splits.InManage(snapshot.ID)
	}
	return view
}

func (h *Handler) validMethod(w http.ResponseWriter, method string) bool {
	if method == "" {
		apt.RespondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("%s: payment method is required", ReasonPaymentRequired))
		return false
	}
	if paymethod.ByName(method) == nil {
		apt.RespondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("unsupported payment method %q", method))
		return false
	}
	return true
}

func (h *Handler) employeeID(r *http.Request) string {
	if id := r.Header.Get("X-Employee-ID"); id != "" {
		return id
	}
	if h.config != nil {
		return h.config.GetStringOrDef("terminal.employee_id", "")
	}
	return ""
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrItemNotFound) {
		apt.RespondError(w, http.StatusNotFound, "Item not found")
		return
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		apt.RespondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s: %s", ve.Reason, ve.Message))
		return
	}
	var declined *PaymentDeclinedError
	if errors.As(err, &declined) {
		apt.RespondError(w, http.StatusPaymentRequired, declined.Error())
		return
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		apt.RespondError(w, http.StatusBadGateway, pe.Error())
		return
	}
	apt.RespondError(w, http.StatusInternalServerError, "Request failed")
}

func (h *Handler) publishOrderLifecycle(r *http.Request, eventType string, orderID OrderID, snapshot DraftOrder, status string) {
	if h.publisher == nil {
		return
	}
	ev := event.TerminalOrderEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		OrderID:    orderID.String(),
		Number:     snapshot.Number,
		OrderType:  snapshot.OrderType,
		TabName:    snapshot.TabName,
		Status:     status,
		Total:      snapshot.Total,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log(r).Error("cannot marshal order event", "error", err, "order_id", orderID.String())
		return
	}
	if err := h.publisher.Publish(r.Context(), event.TerminalOrdersTopic, payload); err != nil {
		h.log(r).Error("cannot publish order event", "error", err, "order_id", orderID.String())
	}
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}

func (h *Handler) decodeDraftPatchPayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (DraftPatchRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return DraftPatchRequest{}, false
	}

	var req DraftPatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return DraftPatchRequest{}, false
	}

	return req, true
}

func (h *Handler) decodeDraftItemPayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (DraftItemRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return DraftItemRequest{}, false
	}

	var req DraftItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return DraftItemRequest{}, false
	}

	return req, true
}

func (h *Handler) decodeDraftItemPatchPayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (DraftItemPatchRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return DraftItemPatchRequest{}, false
	}

	var req DraftItemPatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return DraftItemPatchRequest{}, false
	}

	return req, true
}

func (h *Handler) decodePayPayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (PayRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return PayRequest{}, false
	}

	var req PayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return PayRequest{}, false
	}

	return req, true
}

func (h *Handler) decodeSettlePayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (SettleRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return SettleRequest{}, false
	}

	var req SettleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return SettleRequest{}, false
	}

	return req, true
}
