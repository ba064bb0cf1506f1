package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/escrowshop/internal/application/fulfilment"
	appInventory "github.com/Zhima-Mochi/escrowshop/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type addProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.catalogue.AddProduct(r.Context(), appInventory.AddProductInput{
		Caller:      principalFromContext(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Unit:        req.Unit,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogue.ListVendorProducts(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

type updateStockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.catalogue.UpdateStock(r.Context(), appInventory.UpdateStockInput{
		Caller:    principalFromContext(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  req.Quantity,
	})
	h.writeProduct(w, r, p, err)
}

type updatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.catalogue.UpdatePrice(r.Context(), appInventory.UpdatePriceInput{
		Caller:    principalFromContext(r.Context()),
		ProductID: chi.URLParam(r, "productID"),
		Price:     req.Price,
	})
	h.writeProduct(w, r, p, err)
}

func (h *Handler) writeProduct(w http.ResponseWriter, r *http.Request, p *dominv.Product, err error) {
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.catalogue.DeleteProduct(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVendorOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.fulfilment.ListOrders(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderDTOs(orders)})
}

func (h *Handler) handlePrepareGoods(w http.ResponseWriter, r *http.Request) {
	o, err := h.fulfilment.PrepareGoods(r.Context(), fulfilment.PrepareInput{
		Caller:  principalFromContext(r.Context()),
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{Order: toOrderDTO(o)})
}

type uploadProofRequest struct {
	ProofHash string `json:"proof_hash"`
	VendorKey string `json:"vendor_key"`
}

func (h *Handler) handleUploadProof(w http.ResponseWriter, r *http.Request) {
	var req uploadProofRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.fulfilment.UploadProof(r.Context(), fulfilment.UploadProofInput{
		Caller:    principalFromContext(r.Context()),
		OrderID:   chi.URLParam(r, "orderID"),
		ProofHash: req.ProofHash,
		VendorKey: req.VendorKey,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, txResponse{Order: toOrderDTO(res.Order), TxDigest: res.Receipt.Digest})
}
