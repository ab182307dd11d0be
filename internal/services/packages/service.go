package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/auth"
	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/cache"
	"github.com/BearBump/ParcelBox/internal/integrations/label"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/trackid"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	maxTrackingIDAttempts = 5
	defaultPublishTimeout = 5 * time.Second
)

type Repository interface {
	CreatePackage(ctx context.Context, p *models.Package, actor string) error
	GetPackage(ctx context.Context, key models.PackageKey) (*models.Package, error)
	ListPackages(ctx context.Context) ([]*models.Package, error)
	ModifyPackage(ctx context.Context, key models.PackageKey, actor string, fn func(p *models.Package) error) (*models.Package, error)
	DeletePackage(ctx context.Context, id string) error
	ListStatusEvents(ctx context.Context, packageID string) ([]models.StatusEvent, error)
}

type LabelRenderer interface {
	Render(p *models.Package) ([]byte, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type IDGenerator interface {
	Generate() (string, error)
}

type Service struct {
	repo     Repository
	labels   LabelRenderer
	producer Producer
	topic    string
	ids      IDGenerator

	cache    cache.BytesCache
	trackTTL time.Duration

	publishTimeout time.Duration
	inFlight       sync.WaitGroup
}

// New собирает сервис посылок. producer может быть nil: тогда уведомления не ставятся в очередь.
func New(repo Repository, labels LabelRenderer, producer Producer) *Service {
	return &Service{
		repo:           repo,
		labels:         labels,
		producer:       producer,
		topic:          messages.PackageRegisteredTopic,
		ids:            trackid.New(trackid.DefaultLength),
		publishTimeout: defaultPublishTimeout,
	}
}

func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.trackTTL = ttl
	return s
}

func (s *Service) WithTrackingIDs(g IDGenerator) *Service {
	if g != nil {
		s.ids = g
	}
	return s
}

func (s *Service) WithPublishTimeout(d time.Duration) *Service {
	if d > 0 {
		s.publishTimeout = d
	}
	return s
}

func (s *Service) WithTopic(topic string) *Service {
	if topic != "" {
		s.topic = topic
	}
	return s
}

// Drain ждёт завершения всех фоновых публикаций.
func (s *Service) Drain() {
	s.inFlight.Wait()
}

func (s *Service) Create(ctx context.Context, in models.PackageCreateInput) (*models.Package, error) {
	p := &models.Package{
		ID:            uuid.NewString(),
		SenderName:    in.SenderName,
		ReceiverName:  in.ReceiverName,
		Address:       in.Address,
		City:          in.City,
		Phone:         in.Phone,
		SenderEmail:   in.SenderEmail,
		ReceiverEmail: in.ReceiverEmail,
		WeightKg:      in.WeightKg,
		Price:         in.Price,
		ShipDate:      in.ShipDate,
		Status:        in.Status,
	}
	normalize(p)
	if err := validateDetails(p); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = models.PackageStatusNew
	}
	if p.Status != models.PackageStatusNew {
		return nil, apperrors.Validation("initial status must be %q", models.PackageStatusNew)
	}

	actor := auth.Actor(ctx)
	if err := s.insert(ctx, p, strings.TrimSpace(in.TrackingID), actor); err != nil {
		return nil, err
	}

	doc, err := s.labels.Render(p)
	if err != nil {
		return nil, errors.Wrapf(err, "render label for %s", p.TrackingID)
	}
	s.enqueueRegistered(p, doc)
	return p, nil
}

func (s *Service) insert(ctx context.Context, p *models.Package, trackingID, actor string) error {
	if trackingID != "" {
		if !trackid.Valid(trackingID) {
			return apperrors.Validation("tracking_id must be 4-32 latin letters or digits")
		}
		p.TrackingID = trackingID
		err := s.repo.CreatePackage(ctx, p, actor)
		if errors.Is(err, models.ErrAlreadyExists) {
			return apperrors.Validation("tracking_id %s already exists", trackingID)
		}
		return err
	}

	for attempt := 0; attempt < maxTrackingIDAttempts; attempt++ {
		id, err := s.ids.Generate()
		if err != nil {
			return errors.Wrap(err, "generate tracking id")
		}
		p.TrackingID = id
		err = s.repo.CreatePackage(ctx, p, actor)
		if errors.Is(err, models.ErrAlreadyExists) {
			slog.Warn("tracking id collision, regenerating", "tracking_id", id, "attempt", attempt+1)
			continue
		}
		return err
	}
	return errors.Errorf("no free tracking id after %d attempts", maxTrackingIDAttempts)
}

func (s *Service) enqueueRegistered(p *models.Package, doc []byte) {
	if s.producer == nil {
		return
	}
	msg := messages.PackageRegistered{
		PackageID:     p.ID,
		TrackingID:    p.TrackingID,
		SenderName:    p.SenderName,
		ReceiverName:  p.ReceiverName,
		SenderEmail:   p.SenderEmail,
		ReceiverEmail: p.ReceiverEmail,
		CreatedAt:     p.CreatedAt,
		Attachment: messages.Attachment{
			Filename:    label.Filename(p),
			ContentType: label.ContentType,
			Data:        doc,
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal package notification", "package_id", p.ID, "error", err.Error())
		return
	}

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		// контекст запроса к этому моменту уже может быть отменён
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.producer.Publish(ctx, s.topic, []byte(msg.TrackingID), b); err != nil {
			slog.Error("enqueue package notification", "package_id", msg.PackageID, "tracking_id", msg.TrackingID, "error", err.Error())
		}
	}()
}

func (s *Service) Get(ctx context.Context, id string) (*models.Package, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("id is required")
	}
	p, err := s.repo.GetPackage(ctx, models.PackageKey{ID: id})
	if err != nil {
		return nil, notFound(err, "package not found")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Package, error) {
	if _, err := auth.Require(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListPackages(ctx)
}

func (s *Service) Update(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error) {
	if _, err := auth.Require(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.Validation("unknown status %q", *patch.Status)
	}

	p, err := s.repo.ModifyPackage(ctx, models.PackageKey{ID: id}, auth.Actor(ctx), func(p *models.Package) error {
		prev := p.Status
		patch.Apply(p)
		normalize(p)
		if err := validateDetails(p); err != nil {
			return err
		}
		if !prev.CanTransitionTo(p.Status) {
			return apperrors.Validation("status cannot change from %s to %s", prev, p.Status)
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, "package not found")
	}
	s.invalidate(ctx, p.TrackingID)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := auth.Require(ctx, models.RoleAdmin); err != nil {
		return err
	}
	p, err := s.repo.GetPackage(ctx, models.PackageKey{ID: id})
	if err != nil {
		return notFound(err, "package not found")
	}
	if err := s.repo.DeletePackage(ctx, p.ID); err != nil {
		return notFound(err, "package not found")
	}
	s.invalidate(ctx, p.TrackingID)
	return nil
}

// UpdateStatus меняет статус по трек-номеру. Пустой статус означает delivered.
func (s *Service) UpdateStatus(ctx context.Context, trackingID string, status models.PackageStatus) (*models.Package, error) {
	if _, err := auth.Require(ctx, models.RoleCourier, models.RoleAdmin); err != nil {
		return nil, err
	}
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, apperrors.Validation("tracking_id is required")
	}
	if status == "" {
		status = models.PackageStatusDelivered
	}
	if !status.Valid() {
		return nil, apperrors.Validation("unknown status %q", status)
	}

	p, err := s.repo.ModifyPackage(ctx, models.PackageKey{TrackingID: trackingID}, auth.Actor(ctx), func(p *models.Package) error {
		if !p.Status.CanTransitionTo(status) {
			return apperrors.Validation("status cannot change from %s to %s", p.Status, status)
		}
		p.Status = status
		return nil
	})
	if err != nil {
		return nil, notFound(err, "package not found")
	}
	s.invalidate(ctx, p.TrackingID)
	return p, nil
}

func (s *Service) Track(ctx context.Context, trackingID string) (*models.TrackView, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, apperrors.Validation("tracking_id is required")
	}

	// кэш best-effort: ошибки Redis считаем промахом
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, trackKey(trackingID)); err == nil && ok {
			var v models.TrackView
			if json.Unmarshal(b, &v) == nil {
				return &v, nil
			}
		}
	}

	p, err := s.repo.GetPackage(ctx, models.PackageKey{TrackingID: trackingID})
	if err != nil {
		return nil, notFound(err, "package not found")
	}
	history, err := s.repo.ListStatusEvents(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	v := &models.TrackView{Package: p, History: history}

	if s.cacheEnabled() {
		b, _ := json.Marshal(v)
		_ = s.cache.Set(ctx, trackKey(trackingID), b, s.trackTTL)
	}
	return v, nil
}

type ScanInput struct {
	TrackingID string
	Payload    string
}

// Scan принимает либо трек-номер, либо содержимое QR-кода с этикетки.
func (s *Service) Scan(ctx context.Context, in ScanInput) (*models.TrackView, error) {
	if id := strings.TrimSpace(in.TrackingID); id != "" {
		return s.Track(ctx, id)
	}
	payload := strings.TrimSpace(in.Payload)
	if payload == "" {
		return nil, apperrors.Validation("tracking_id or payload is required")
	}
	if !strings.HasPrefix(payload, "{") {
		return s.Track(ctx, payload)
	}

	var qr label.QRPayload
	if err := json.Unmarshal([]byte(payload), &qr); err != nil {
		return nil, apperrors.Validation("payload is not a label code")
	}
	if qr.TrackingID != "" {
		return s.Track(ctx, qr.TrackingID)
	}
	if qr.ID == "" {
		return nil, apperrors.Validation("payload has no tracking_id")
	}
	p, err := s.repo.GetPackage(ctx, models.PackageKey{ID: qr.ID})
	if err != nil {
		return nil, notFound(err, "package not found")
	}
	return s.Track(ctx, p.TrackingID)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.trackTTL > 0
}

func (s *Service) invalidate(ctx context.Context, trackingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, trackKey(trackingID)); err != nil {
		slog.Warn("track cache invalidation failed", "tracking_id", trackingID, "error", err.Error())
	}
}

func trackKey(trackingID string) string {
	return fmt.Sprintf("track:%s", trackingID)
}

func notFound(err error, msg string) error {
	if errors.Is(err, models.ErrNotFound) {
		return apperrors.NotFound("%s", msg)
	}
	return err
}

func normalize(p *models.Package) {
	for _, f := range []*string{
		&p.SenderName, &p.ReceiverName, &p.Address, &p.City,
		&p.Phone, &p.SenderEmail, &p.ReceiverEmail,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func validateDetails(p *models.Package) error {
	required := []struct {
		name, value string
	}{
		{"sender_name", p.SenderName},
		{"receiver_name", p.ReceiverName},
		{"address", p.Address},
		{"city", p.City},
		{"phone", p.Phone},
		{"sender_email", p.SenderEmail},
		{"receiver_email", p.ReceiverEmail},
	}
	for _, f := range required {
		if f.value == "" {
			return apperrors.Validation("%s is required", f.name)
		}
	}
	for _, e := range []struct{ name, value string }{
		{"sender_email", p.SenderEmail},
		{"receiver_email", p.ReceiverEmail},
	} {
		if _, err := mail.ParseAddress(e.value); err != nil {
			return apperrors.Validation("%s is not a valid email", e.name)
		}
	}
	if p.WeightKg != nil && *p.WeightKg < 0 {
		return apperrors.Validation("weight_kg must not be negative")
	}
	if p.Price != nil && *p.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	if p.Status != "" && !p.Status.Valid() {
		return apperrors.Validation("unknown status %q", p.Status)
	}
	return nil
}
