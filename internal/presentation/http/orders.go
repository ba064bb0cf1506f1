package httppresentation

import (
	"net/http"
	"strings"

	appOrder "github.com/Zhima-Mochi/escrowshop/internal/application/order"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type placeOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	Items           []placeOrderItem `json:"items"`
	VerifierAddress string           `json:"verifier_address"`
	IdempotencyKey  string           `json:"idempotency_key"`
}

type placeOrderResponse struct {
	orderDTO
	// UnlockKey is shown once, to the sender, when the order is placed.
	UnlockKey string `json:"unlock_key"`
	Replayed  bool   `json:"replayed,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	idem := strings.TrimSpace(req.IdempotencyKey)
	if idem == "" {
		idem = strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	}
	items := make([]appOrder.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, appOrder.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.orders.Place.Execute(r.Context(), appOrder.PlaceOrderInput{
		Caller:          principalFromContext(r.Context()),
		Items:           items,
		VerifierAddress: req.VerifierAddress,
		IdempotencyKey:  idem,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, placeOrderResponse{
		orderDTO:  toOrderDTO(res.Order),
		UnlockKey: res.Order.UnlockKey,
		Replayed:  res.Replayed,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List.Execute(r.Context(), appOrder.ListOrdersInput{
		Caller: principalFromContext(r.Context()),
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderDTOs(orders)})
}

type fundOrderRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	SenderKey string          `json:"sender_key"`
}

type txResponse struct {
	Order    orderDTO `json:"order"`
	TxDigest string   `json:"tx_digest,omitempty"`
}

func (h *Handler) handleFundOrder(w http.ResponseWriter, r *http.Request) {
	var req fundOrderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.orders.Fund.Execute(r.Context(), appOrder.FundOrderInput{
		Caller:    principalFromContext(r.Context()),
		OrderID:   chi.URLParam(r, "orderID"),
		Amount:    req.Amount,
		SenderKey: req.SenderKey,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{Order: toOrderDTO(res.Order), TxDigest: res.Receipt.Digest})
}

func (h *Handler) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	tracked, err := h.orders.Track.Execute(r.Context(), appOrder.TrackOrderInput{
		Caller:  principalFromContext(r.Context()),
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackedOrderDTO(tracked))
}

type confirmReceiptRequest struct {
	UnlockKey string `json:"unlock_key"`
}

func (h *Handler) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	var req confirmReceiptRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.orders.Confirm.Execute(r.Context(), appOrder.ConfirmReceiptInput{
		Caller:    principalFromContext(r.Context()),
		OrderID:   chi.URLParam(r, "orderID"),
		UnlockKey: req.UnlockKey,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{Order: toOrderDTO(res.Order), TxDigest: res.Receipt.Digest})
}

type cancelOrderRequest struct {
	SenderKey string `json:"sender_key"`
}

type restockWarning struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

type cancelOrderResponse struct {
	txResponse
	Warnings []restockWarning `json:"warnings,omitempty"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.orders.Cancel.Execute(r.Context(), appOrder.CancelOrderInput{
		Caller:    principalFromContext(r.Context()),
		OrderID:   chi.URLParam(r, "orderID"),
		SenderKey: req.SenderKey,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	resp := cancelOrderResponse{txResponse: txResponse{Order: toOrderDTO(res.Order), TxDigest: res.Receipt.Digest}}
	for _, f := range res.RestockFailures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp.Warnings = append(resp.Warnings, restockWarning{ProductID: f.ProductID, Quantity: f.Quantity, Error: msg})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.Execute(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toAuditDTOs(entries)})
}
