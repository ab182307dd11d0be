package models

import "time"

type PackageStatus string

const (
	PackageStatusNew            PackageStatus = "new"
	PackageStatusInTransit      PackageStatus = "in_transit"
	PackageStatusOutForDelivery PackageStatus = "out_for_delivery"
	PackageStatusDelivered      PackageStatus = "delivered"
	PackageStatusReturned       PackageStatus = "returned"
	PackageStatusCancelled      PackageStatus = "cancelled"
)

// Переходы статусов. Терминальные статусы не имеют исходящих переходов.
var packageTransitions = map[PackageStatus][]PackageStatus{
	PackageStatusNew:            {PackageStatusInTransit, PackageStatusOutForDelivery, PackageStatusDelivered, PackageStatusCancelled},
	PackageStatusInTransit:      {PackageStatusOutForDelivery, PackageStatusDelivered, PackageStatusReturned},
	PackageStatusOutForDelivery: {PackageStatusInTransit, PackageStatusDelivered, PackageStatusReturned},
	PackageStatusDelivered:      nil,
	PackageStatusReturned:       nil,
	PackageStatusCancelled:      nil,
}

func (s PackageStatus) Valid() bool {
	_, ok := packageTransitions[s]
	return ok
}

func (s PackageStatus) Terminal() bool {
	return s.Valid() && len(packageTransitions[s]) == 0
}

// CanTransitionTo reports whether a package in status s may move to next.
// Re-setting the current status is allowed and is a no-op.
func (s PackageStatus) CanTransitionTo(next PackageStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, to := range packageTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Package struct {
	ID            string        `json:"id"`
	SenderName    string        `json:"sender_name"`
	ReceiverName  string        `json:"receiver_name"`
	Address       string        `json:"address"`
	City          string        `json:"city"`
	Phone         string        `json:"phone"`
	SenderEmail   string        `json:"sender_email"`
	ReceiverEmail string        `json:"receiver_email"`
	WeightKg      *float64      `json:"weight_kg,omitempty"`
	Price         *float64      `json:"price,omitempty"`
	ShipDate      *time.Time    `json:"ship_date,omitempty"`
	TrackingID    string        `json:"tracking_id"`
	Status        PackageStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type PackageCreateInput struct {
	SenderName    string
	ReceiverName  string
	Address       string
	City          string
	Phone         string
	SenderEmail   string
	ReceiverEmail string
	WeightKg      *float64
	Price         *float64
	ShipDate      *time.Time
	TrackingID    string
	Status        PackageStatus
}

// PackagePatch is a partial update: nil fields are left untouched.
type PackagePatch struct {
	SenderName    *string
	ReceiverName  *string
	Address       *string
	City          *string
	Phone         *string
	SenderEmail   *string
	ReceiverEmail *string
	WeightKg      *float64
	Price         *float64
	ShipDate      *time.Time
	Status        *PackageStatus
}

// Apply merges the non-nil fields of the patch into p.
func (pp PackagePatch) Apply(p *Package) {
	setString(&p.SenderName, pp.SenderName)
	setString(&p.ReceiverName, pp.ReceiverName)
	setString(&p.Address, pp.Address)
	setString(&p.City, pp.City)
	setString(&p.Phone, pp.Phone)
	setString(&p.SenderEmail, pp.SenderEmail)
	setString(&p.ReceiverEmail, pp.ReceiverEmail)
	if pp.WeightKg != nil {
		v := *pp.WeightKg
		p.WeightKg = &v
	}
	if pp.Price != nil {
		v := *pp.Price
		p.Price = &v
	}
	if pp.ShipDate != nil {
		v := *pp.ShipDate
		p.ShipDate = &v
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

type StatusEvent struct {
	ID        int64         `json:"-"`
	PackageID string        `json:"-"`
	Status    PackageStatus `json:"status"`
	ChangedBy string        `json:"changed_by"`
	ChangedAt time.Time     `json:"changed_at"`
}

// TrackView is what the public tracking endpoints return.
type TrackView struct {
	Package *Package      `json:"package"`
	History []StatusEvent `json:"history"`
}

// PackageKey selects a package either by internal id or by tracking id.
type PackageKey struct {
	ID         string
	TrackingID string
}
