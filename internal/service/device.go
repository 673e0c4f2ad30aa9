// Package service implements the device registry: identifier assignment, the shared
// unique-code counter and the scan payload state machine.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/metrics"
	"github.com/atinyakov/binfixture/internal/models"
	"github.com/atinyakov/binfixture/internal/repository"
	"github.com/atinyakov/binfixture/internal/sealer"
)

const (
	// AutoToken requests automatic identifier assignment.
	AutoToken = "AUTO"
	// DefaultPrefix is prepended to every device identifier.
	DefaultPrefix = "DUMMY-BIN"
	// InvalidPayload is rendered as a QR that no device would ever emit.
	InvalidPayload = "invacygjhgblid"

	maxNumericID = 999
)

// DeviceRepository stores devices for the registry.
type DeviceRepository interface {
	// Exists reports whether id is already taken.
	Exists(ctx context.Context, id string) bool
	// Add stores a new device.
	Add(ctx context.Context, d *models.Device) error
	// Update replaces a stored device.
	Update(ctx context.Context, d *models.Device) error
	// Get fetches a device by id.
	Get(ctx context.Context, id string) (*models.Device, error)
	// List returns all devices in creation order.
	List(ctx context.Context) []*models.Device
	// Index returns the creation position of id, or -1.
	Index(ctx context.Context, id string) int
}

// Encoder turns a record into its encrypted text form.
type Encoder interface {
	Encode(ctx context.Context, record any) (string, error)
}

// Options configures a DeviceService.
type Options struct {
	// Prefix defaults to DefaultPrefix.
	Prefix string
	// CodeSeed is the first unique code issued. Zero seeds from the clock in milliseconds.
	CodeSeed uint64
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics defaults to unregistered collectors.
	Metrics *metrics.Metrics
}

// Fixture is a device together with the two strings handed to the QR renderer.
type Fixture struct {
	Device *models.Device
	// Position is the 1-based creation order.
	Position int
	// Register is the plain JSON of the register payload.
	Register string
	// Scan is the encoded scan payload, empty if the last encode failed.
	Scan string
}

// DeviceService owns the registry state. All mutation goes through Create and Refresh,
// which are serialized.
type DeviceService struct {
	mu      sync.Mutex
	repo    DeviceRepository
	enc     Encoder
	log     *zap.Logger
	metrics *metrics.Metrics
	prefix  string

	// nextSeq is the next auto-assigned device number.
	nextSeq int
	// nextCode is the next unique code to issue.
	nextCode uint64
}

// NewDeviceService constructs a registry over repo that encrypts scan payloads with enc.
func NewDeviceService(repo DeviceRepository, enc Encoder, opts Options) *DeviceService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	seed := opts.CodeSeed
	if seed == 0 {
		seed = uint64(opts.Now().UnixMilli())
	}
	return &DeviceService{
		repo:     repo,
		enc:      enc,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		prefix:   lo.Ternary(opts.Prefix == "", DefaultPrefix, opts.Prefix),
		nextSeq:  1,
		nextCode: seed,
	}
}

// Create registers a device for token and encodes its scan payload.
//
// token may be empty or AUTO for the next sequence number, a number in [0, 999]
// which is zero-padded to three digits, or any other text used verbatim.
// Validation failures leave the registry untouched. If encoding fails the device
// is still registered and its code is spent; the returned fixture carries an empty
// Scan and a later Refresh regenerates it.
func (s *DeviceService) Create(ctx context.Context, token string) (*Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, seq, err := s.resolveID(ctx, token)
	if err != nil {
		s.metrics.ValidationRejected.Inc()
		s.log.Warn("device id rejected", zap.String("token", token), zap.Error(err))
		return nil, err
	}
	if seq > 0 {
		s.nextSeq = seq + 1
	}

	dev := models.NewDevice(id, s.issueCode())
	if err := s.repo.Add(ctx, dev); err != nil {
		return nil, errors.Wrap(err, "store device")
	}
	s.metrics.DevicesCreated.Inc()

	register, err := models.CanonicalJSON(dev.Register)
	if err != nil {
		return nil, errors.Wrap(err, "serialize register payload")
	}
	s.log.Info("device created", zap.String("device_id", id), zap.Uint64("unique_code", dev.UniqueCode))
	s.log.Debug("register payload", zap.String("device_id", id), zap.ByteString("json", register))

	encErr := s.encodeScan(ctx, dev, "create")
	if err := s.repo.Update(ctx, dev); err != nil {
		return nil, errors.Wrap(err, "store device")
	}

	return &Fixture{
		Device:   dev.Clone(),
		Position: s.repo.Index(ctx, id) + 1,
		Register: string(register),
		Scan:     dev.EncodedScan,
	}, encErr
}

// Refresh issues a new unique code to the device with id and re-encodes its scan
// payload. Unknown ids are ignored: found is false and nothing changes.
func (s *DeviceService) Refresh(ctx context.Context, id string) (scan string, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		s.metrics.RefreshMisses.Inc()
		s.log.Debug("refresh ignored, unknown device", zap.String("device_id", id))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	prev := dev.UniqueCode
	dev.SetUniqueCode(s.issueCode())
	s.metrics.ScansRefreshed.Inc()
	s.log.Info("scan refreshed",
		zap.String("device_id", id),
		zap.Uint64("previous_code", prev),
		zap.Uint64("unique_code", dev.UniqueCode),
	)

	encErr := s.encodeScan(ctx, dev, "refresh")
	if err := s.repo.Update(ctx, dev); err != nil {
		return "", true, errors.Wrap(err, "store device")
	}
	return dev.EncodedScan, true, encErr
}

// Get returns the fixture for id.
func (s *DeviceService) Get(ctx context.Context, id string) (*Fixture, error) {
	dev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.fixture(ctx, dev)
}

// List returns fixtures for every device in creation order.
func (s *DeviceService) List(ctx context.Context) ([]*Fixture, error) {
	devs := s.repo.List(ctx)
	out := make([]*Fixture, 0, len(devs))
	for _, d := range devs {
		f, err := s.fixture(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Prefix returns the identifier prefix in use.
func (s *DeviceService) Prefix() string { return s.prefix }

func (s *DeviceService) fixture(ctx context.Context, d *models.Device) (*Fixture, error) {
	register, err := models.CanonicalJSON(d.Register)
	if err != nil {
		return nil, errors.Wrap(err, "serialize register payload")
	}
	return &Fixture{
		Device:   d,
		Position: s.repo.Index(ctx, d.ID) + 1,
		Register: string(register),
		Scan:     d.EncodedScan,
	}, nil
}

// encodeScan re-synchronizes and encrypts dev.Scan. On failure dev stays in
// StateCreated and the error is logged and returned.
func (s *DeviceService) encodeScan(ctx context.Context, dev *models.Device, op string) error {
	dev.Scan.UniqueCode = dev.UniqueCode
	encoded, err := s.enc.Encode(ctx, dev.Scan)
	if err != nil {
		s.metrics.EncryptionFailures.WithLabelValues(op).Inc()
		s.log.Error("scan payload encode failed",
			zap.String("device_id", dev.ID),
			zap.Uint64("unique_code", dev.UniqueCode),
			zap.Error(err),
		)
		if !errors.Is(err, sealer.ErrEncryption) {
			err = errors.Mark(err, sealer.ErrEncryption)
		}
		return errors.Wrapf(err, "encode scan payload for %s", dev.ID)
	}
	dev.EncodedScan = encoded
	dev.State = models.StateScanEncoded
	s.log.Debug("scan payload encoded", zap.String("device_id", dev.ID), zap.String("encoded", encoded))
	return nil
}

// issueCode returns the next unique code and advances the shared counter.
func (s *DeviceService) issueCode() uint64 {
	code := s.nextCode
	s.nextCode++
	s.metrics.LastUniqueCode.Set(float64(code))
	return code
}

// resolveID maps token to a device identifier without mutating state. seq is the
// sequence number consumed by automatic assignment, or 0.
func (s *DeviceService) resolveID(ctx context.Context, token string) (id string, seq int, err error) {
	norm := strings.ToUpper(strings.TrimSpace(token))

	if norm == "" || norm == AutoToken {
		seq = s.nextSeq
		for s.repo.Exists(ctx, s.numbered(seq)) {
			seq++
		}
		return s.numbered(seq), seq, nil
	}

	n, convErr := strconv.Atoi(norm)
	switch {
	case errors.Is(convErr, strconv.ErrRange), convErr == nil && (n < 0 || n > maxNumericID):
		return "", 0, validationError(token, fmt.Sprintf("number must be between 0 and %d", maxNumericID))
	case convErr == nil:
		id = s.numbered(n)
	default:
		id = s.prefix + "-" + norm
	}

	if s.repo.Exists(ctx, id) {
		return "", 0, duplicateError(token, id)
	}
	return id, 0, nil
}

func (s *DeviceService) numbered(n int) string {
	return fmt.Sprintf("%s-%03d", s.prefix, n)
}
