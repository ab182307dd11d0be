package parcels_api

import (
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/services/packages"
	"github.com/go-chi/chi/v5"
)

type packageRequest struct {
	SenderName    *string  `json:"sender_name"`
	ReceiverName  *string  `json:"receiver_name"`
	Address       *string  `json:"address"`
	City          *string  `json:"city"`
	Phone         *string  `json:"phone"`
	SenderEmail   *string  `json:"sender_email"`
	ReceiverEmail *string  `json:"receiver_email"`
	WeightKg      *float64 `json:"weight_kg"`
	Price         *float64 `json:"price"`
	ShipDate      *string  `json:"ship_date"`
	TrackingID    *string  `json:"tracking_id"`
	Status        *string  `json:"status"`
}

type packageResponse struct {
	Success bool            `json:"success"`
	Package *models.Package `json:"package"`
}

// parseShipDate принимает дату (2006-01-02) или полный RFC3339.
func parseShipDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.Validation("ship_date must be YYYY-MM-DD or RFC3339")
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (req packageRequest) createInput() (models.PackageCreateInput, error) {
	shipDate, err := parseShipDate(req.ShipDate)
	if err != nil {
		return models.PackageCreateInput{}, err
	}
	return models.PackageCreateInput{
		SenderName:    deref(req.SenderName),
		ReceiverName:  deref(req.ReceiverName),
		Address:       deref(req.Address),
		City:          deref(req.City),
		Phone:         deref(req.Phone),
		SenderEmail:   deref(req.SenderEmail),
		ReceiverEmail: deref(req.ReceiverEmail),
		WeightKg:      req.WeightKg,
		Price:         req.Price,
		ShipDate:      shipDate,
		TrackingID:    deref(req.TrackingID),
		Status:        models.PackageStatus(deref(req.Status)),
	}, nil
}

// patch игнорирует tracking_id: он неизменяем.
func (req packageRequest) patch() (models.PackagePatch, error) {
	shipDate, err := parseShipDate(req.ShipDate)
	if err != nil {
		return models.PackagePatch{}, err
	}
	pp := models.PackagePatch{
		SenderName:    req.SenderName,
		ReceiverName:  req.ReceiverName,
		Address:       req.Address,
		City:          req.City,
		Phone:         req.Phone,
		SenderEmail:   req.SenderEmail,
		ReceiverEmail: req.ReceiverEmail,
		WeightKg:      req.WeightKg,
		Price:         req.Price,
		ShipDate:      shipDate,
	}
	if req.Status != nil {
		st := models.PackageStatus(*req.Status)
		pp.Status = &st
	}
	return pp, nil
}

func (a *ParcelsAPI) createPackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.createInput()
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := a.packages.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packageResponse{Success: true, Package: p})
}

func (a *ParcelsAPI) listPackages(w http.ResponseWriter, r *http.Request) {
	ps, err := a.packages.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []*models.Package{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *ParcelsAPI) getPackage(w http.ResponseWriter, r *http.Request) {
	p, err := a.packages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *ParcelsAPI) updatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := a.packages.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *ParcelsAPI) deletePackage(w http.ResponseWriter, r *http.Request) {
	if err := a.packages.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *ParcelsAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := a.packages.UpdateStatus(r.Context(), chi.URLParam(r, "trackingId"), models.PackageStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packageResponse{Success: true, Package: p})
}

func (a *ParcelsAPI) track(w http.ResponseWriter, r *http.Request) {
	v, err := a.packages.Track(r.Context(), chi.URLParam(r, "trackingId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type scanRequest struct {
	TrackingID string `json:"tracking_id"`
	Payload    string `json:"payload"`
}

func (a *ParcelsAPI) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := a.packages.Scan(r.Context(), packages.ScanInput{TrackingID: req.TrackingID, Payload: req.Payload})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
