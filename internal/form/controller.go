package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// maxCascadeDepth bounds nested reconciliation: one level per axis.
const maxCascadeDepth = 4

// SeatLookup fetches the seat offerings of a course. Implementations exclude
// the reserved Credit seat.
type SeatLookup interface {
	SeatOfferings(ctx context.Context, courseID string) ([]models.SeatOffering, error)
}

// References resolves ids from the pre-loaded reference collections.
type References interface {
	Catalog(id string) (models.RefItem, bool)
	EnterpriseCustomer(id string) (models.RefItem, bool)
}

// Persister writes finished coupon records.
type Persister interface {
	Create(ctx context.Context, rec models.Attributes) (int64, error)
	Update(ctx context.Context, id int64, rec models.Attributes) error
}

// Loop runs fn on the event loop that owns the controller.
type Loop interface {
	Dispatch(fn func())
}

// Runner executes blocking work away from the event loop.
type Runner interface {
	Submit(task func(ctx context.Context)) error
}

// Observer is told how each seat lookup ended: "ok", "error" or "stale".
type Observer interface {
	LookupResolved(outcome string)
}

// Options wires a controller to its collaborators. Loop is required when
// Lookup is set.
type Options struct {
	Lookup     SeatLookup
	References References
	Persister  Persister
	Loop       Loop
	Runner     Runner
	Observer   Observer
	Logger     *slog.Logger
}

// lockedOnEdit are redemption attributes persisted on the vouchers themselves.
var lockedOnEdit = []string{
	models.AttrCouponType,
	models.AttrVoucherType,
	models.AttrCode,
	models.AttrQuantity,
}

// derivedOnly are never written by the user.
var derivedOnly = []string{
	models.AttrID,
	models.AttrTotalValue,
	models.AttrStockRecordIDs,
}

// axes always hold exactly one value once the form is open.
var axes = []string{
	models.AttrCatalogType,
	models.AttrCouponType,
	models.AttrVoucherType,
	models.AttrInvoiceType,
}

// createDefaults are written through the change channel when a create form opens.
var createDefaults = []struct {
	attr  string
	value any
}{
	{models.AttrCatalogType, models.CatalogSingleCourse},
	{models.AttrCouponType, models.CouponEnrollmentCode},
	{models.AttrVoucherType, models.VoucherSingleUse},
	{models.AttrQuantity, 1},
	{models.AttrBenefitType, models.BenefitPercentage},
	{models.AttrInvoiceType, models.InvoicePrepaid},
	{models.AttrInvoiceDiscountType, models.BenefitPercentage},
	{models.AttrTaxDeduction, models.TaxDeductionNo},
}

// syncOrder is the order in which axes are replayed when a persisted record
// is loaded or reverted.
var syncOrder = []string{
	models.AttrCatalogType,
	models.AttrCouponType,
	models.AttrVoucherType,
	models.AttrCode,
	models.AttrQuantity,
	models.AttrBenefitType,
	models.AttrInvoiceType,
	models.AttrInvoiceDiscountType,
	models.AttrTaxDeduction,
}

// limitGroups maps every limited attribute to the group that displays it.
// Limits of hidden fields are not enforced.
var limitGroups = map[string]FieldGroup{
	models.AttrQuantity:               GroupQuantity,
	models.AttrMaxUses:                GroupMaxUses,
	models.AttrBenefitValue:           GroupBenefit,
	models.AttrInvoiceDiscountValue:   GroupInvoiceDiscount,
	models.AttrTaxDeductedSourceValue: GroupTaxDeductedSource,
}

// Controller reconciles one coupon form: it listens to attribute changes,
// derives plans and applies them back to the store and the field state.
// All methods must be called from the owning event loop.
type Controller struct {
	store     *Store
	lookup    SeatLookup
	refs      References
	persister Persister
	loop      Loop
	runner    Runner
	observer  Observer
	log       *slog.Logger

	visible map[FieldGroup]bool
	limits  map[string]Limit

	seats    []models.SeatOffering
	seatsFor string
	pending  string

	initial models.Attributes
	depth   int
	err     error
}

// NewCreate opens a form for a new coupon.
func NewCreate(opts Options) (*Controller, error) {
	c, err := newController(NewStore(), opts)
	if err != nil {
		return nil, err
	}
	for _, d := range createDefaults {
		if _, err := c.store.Set(d.attr, d.value); err != nil {
			return nil, fmt.Errorf("apply default %s: %w", d.attr, err)
		}
	}
	if err := c.takeErr(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewEdit opens a form seeded from a persisted coupon record.
func NewEdit(rec models.Attributes, opts Options) (*Controller, error) {
	store, err := NewStoreFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	c, err := newController(store, opts)
	if err != nil {
		return nil, err
	}
	c.initial = store.Snapshot()
	c.sync()
	c.refreshSeats()
	if err := c.takeErr(); err != nil {
		return nil, err
	}
	return c, nil
}

func newController(store *Store, opts Options) (*Controller, error) {
	if opts.Lookup != nil && opts.Loop == nil {
		return nil, errors.New("form: a Loop is required when a SeatLookup is configured")
	}
	c := &Controller{
		store:     store,
		lookup:    opts.Lookup,
		refs:      opts.References,
		persister: opts.Persister,
		loop:      opts.Loop,
		runner:    opts.Runner,
		observer:  opts.Observer,
		log:       opts.Logger,
	}
	if c.runner == nil {
		c.runner = goRunner{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.resetView()
	for name := range attributeKinds {
		store.OnChange(name, c.onChange)
	}
	return c, nil
}

func (c *Controller) resetView() {
	c.visible = make(map[FieldGroup]bool, len(AllGroups))
	for _, g := range AllGroups {
		c.visible[g] = false
	}
	c.limits = make(map[string]Limit)
}

// Store exposes the underlying attributes for reading.
func (c *Controller) Store() Attributes { return c.store }

// Set writes one attribute as the user would, then reconciles dependent fields.
func (c *Controller) Set(name string, value any) error {
	if lo.Contains(derivedOnly, name) {
		return fmt.Errorf("%w: %s is derived", ErrReadOnly, name)
	}
	if c.store.Editing() && lo.Contains(lockedOnEdit, name) {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	v, err := Coerce(name, value)
	if err != nil {
		return err
	}
	if v == nil && lo.Contains(axes, name) {
		return fmt.Errorf("%w: %s", ErrAxisRequired, name)
	}
	if name == models.AttrSeatType {
		if err := c.checkSeat(v); err != nil {
			return err
		}
	}
	if _, err := c.store.Set(name, v); err != nil {
		return err
	}
	return c.takeErr()
}

// Write is one attribute assignment in a batch.
type Write struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Apply performs writes in order and stops at the first failure.
func (c *Controller) Apply(writes []Write) error {
	for _, w := range writes {
		if err := c.Set(w.Name, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) onChange(ch Change) {
	switch ch.Name {
	case models.AttrCourseCatalog:
		c.rehydrate(ch.Name, c.lookupCatalog)
	case models.AttrEnterpriseCustomer:
		c.rehydrate(ch.Name, c.lookupEnterpriseCustomer)
	}

	c.reconcile(ch.Name, ch.Old)

	switch ch.Name {
	case models.AttrCourseID, models.AttrCatalogType:
		c.refreshSeats()
	}
}

func (c *Controller) reconcile(attr string, prev any) {
	if !Triggers(attr) {
		return
	}
	if c.depth >= maxCascadeDepth {
		c.fail(fmt.Errorf("%w: %s", ErrCascadeDepth, attr))
		return
	}
	c.depth++
	defer func() { c.depth-- }()

	plan := Derive(c.store, Input{Changed: attr, Previous: prev, Seat: c.selectedSeat()})
	c.apply(plan)
}

func (c *Controller) apply(p Plan) {
	for g, v := range p.Visible {
		c.visible[g] = v
	}
	for attr, l := range p.Limits {
		c.limits[attr] = l
	}
	for _, r := range p.Resets {
		if r.Unset {
			c.store.Unset(r.Attr)
			continue
		}
		if _, err := c.store.Set(r.Attr, r.Value); err != nil {
			c.fail(fmt.Errorf("apply reset %s: %w", r.Attr, err))
		}
	}
}

func (c *Controller) fail(err error) {
	c.log.Error("form reconciliation defect", "error", err)
	if c.err == nil {
		c.err = err
	}
}

func (c *Controller) takeErr() error {
	err := c.err
	c.err = nil
	return err
}

// sync replays every axis present in the store, establishing visibility and
// limits for a loaded record.
func (c *Controller) sync() {
	for _, attr := range syncOrder {
		if c.store.Has(attr) {
			c.reconcile(attr, nil)
		}
	}
}

func (c *Controller) rehydrate(attr string, resolve func(string) (models.RefItem, bool)) {
	ref, ok := c.store.Ref(attr)
	if !ok || ref.Name != "" {
		return
	}
	item, found := resolve(ref.ID)
	if !found {
		c.log.Warn("reference id not found", "attribute", attr, "id", ref.ID)
		return
	}
	if _, err := c.store.Set(attr, item); err != nil {
		c.fail(fmt.Errorf("rehydrate %s: %w", attr, err))
	}
}

func (c *Controller) lookupCatalog(id string) (models.RefItem, bool) {
	if c.refs == nil {
		return models.RefItem{}, false
	}
	return c.refs.Catalog(id)
}

func (c *Controller) lookupEnterpriseCustomer(id string) (models.RefItem, bool) {
	if c.refs == nil {
		return models.RefItem{}, false
	}
	return c.refs.EnterpriseCustomer(id)
}

// refreshSeats starts a lookup when the single-course scope points at a
// course whose offerings are neither loaded nor in flight.
func (c *Controller) refreshSeats() {
	courseID := c.store.String(models.AttrCourseID)
	if c.store.String(models.AttrCatalogType) != models.CatalogSingleCourse || courseID == "" {
		c.seats, c.seatsFor, c.pending = nil, "", ""
		return
	}
	if courseID == c.seatsFor || courseID == c.pending {
		return
	}
	c.seats, c.seatsFor = nil, ""
	if c.lookup == nil {
		return
	}
	c.pending = courseID

	lookup, loop := c.lookup, c.loop
	err := c.runner.Submit(func(ctx context.Context) {
		offers, err := lookup.SeatOfferings(ctx, courseID)
		loop.Dispatch(func() { c.deliverSeats(courseID, offers, err) })
	})
	if err != nil {
		c.log.Warn("seat lookup not scheduled", "course_id", courseID, "error", err)
		c.pending = ""
	}
}

// deliverSeats runs on the event loop when a lookup resolves. Results for a
// course that is no longer selected are discarded.
func (c *Controller) deliverSeats(courseID string, offers []models.SeatOffering, err error) {
	if c.pending == courseID {
		c.pending = ""
	}
	if courseID != c.store.String(models.AttrCourseID) ||
		c.store.String(models.AttrCatalogType) != models.CatalogSingleCourse {
		c.log.Debug("discarding stale seat lookup", "course_id", courseID)
		c.observe("stale")
		return
	}

	c.seatsFor = courseID
	if err != nil {
		c.log.Warn("seat lookup failed", "course_id", courseID, "error", err)
		c.seats = nil
		c.observe("error")
		return
	}
	c.seats = lo.Filter(offers, func(o models.SeatOffering, _ int) bool {
		return o.DisplayName != models.SeatTypeCredit
	})
	c.observe("ok")

	if c.store.Editing() {
		c.autoSelectSeat(courseID)
	} else {
		c.reconcileSeat(courseID)
	}
	if err := c.takeErr(); err != nil {
		c.log.Error("seat delivery left form inconsistent", "error", err)
	}
}

func (c *Controller) observe(outcome string) {
	if c.observer != nil {
		c.observer.LookupResolved(outcome)
	}
}

// autoSelectSeat picks the option matching the persisted seat type once the
// offerings of the persisted course arrive.
func (c *Controller) autoSelectSeat(courseID string) {
	want := c.store.String(models.AttrSeatType)
	if want == "" && c.initial != nil && courseID == stringOf(c.initial[models.AttrCourseID]) {
		want = stringOf(c.initial[models.AttrSeatType])
	}
	if want == "" {
		return
	}

	target := capitalize(want)
	if seat, ok := lo.Find(c.seats, func(o models.SeatOffering) bool { return o.DisplayName == target }); ok {
		c.selectSeat(seat.DisplayName)
		return
	}
	if seat, ok := lo.Find(c.seats, func(o models.SeatOffering) bool { return strings.EqualFold(o.DisplayName, want) }); ok {
		c.log.Warn("seat type matched ignoring case", "course_id", courseID, "stored", want, "offered", seat.DisplayName)
		c.selectSeat(seat.DisplayName)
		return
	}
	c.log.Warn("persisted seat type is no longer offered", "course_id", courseID, "seat_type", want)
}

// checkSeat rejects a seat type missing from the loaded offerings of the
// selected course. Until the offerings are known any value is held and
// reconciled on delivery.
func (c *Controller) checkSeat(v any) error {
	name, _ := v.(string)
	if name == "" || c.seatsFor == "" || c.seatsFor != c.store.String(models.AttrCourseID) {
		return nil
	}
	if !lo.Contains(c.SeatOptions(), name) {
		return fmt.Errorf("%w: %q", ErrSeatNotOffered, name)
	}
	return nil
}

// reconcileSeat applies a seat type written before the offerings of courseID
// arrived: a known seat derives stock ids and totals, an unknown one is cleared.
func (c *Controller) reconcileSeat(courseID string) {
	name := c.store.String(models.AttrSeatType)
	if name == "" {
		return
	}
	if c.selectedSeat() != nil {
		c.reconcile(models.AttrSeatType, nil)
		return
	}
	c.log.Warn("selected seat type is not offered", "course_id", courseID, "seat_type", name)
	c.store.Unset(models.AttrSeatType)
}

func (c *Controller) selectSeat(name string) {
	if _, err := c.store.Set(models.AttrSeatType, name); err != nil {
		c.fail(fmt.Errorf("select seat %s: %w", name, err))
	}
}

func (c *Controller) selectedSeat() *models.SeatOffering {
	name := c.store.String(models.AttrSeatType)
	if name == "" {
		return nil
	}
	for i := range c.seats {
		if c.seats[i].DisplayName == name {
			seat := c.seats[i]
			return &seat
		}
	}
	return nil
}

// Revert restores the attributes captured when the record was loaded. Seat
// and catalog-query fields cannot be reverted on their own, so they are
// cleared and re-derived when the course changed since load.
func (c *Controller) Revert() error {
	if !c.store.Editing() {
		return ErrNotEditing
	}
	diverged := c.store.String(models.AttrCourseID) != stringOf(c.initial[models.AttrCourseID])
	if err := c.store.Replace(c.initial); err != nil {
		return fmt.Errorf("revert: %w", err)
	}
	c.resetView()
	c.sync()
	if diverged {
		c.seats, c.seatsFor, c.pending = nil, "", ""
		for _, attr := range []string{
			models.AttrCatalogQuery,
			models.AttrCourseSeatTypes,
			models.AttrSeatType,
			models.AttrStockRecordIDs,
		} {
			c.store.Unset(attr)
		}
	}
	c.refreshSeats()
	if c.seatsFor != "" {
		c.autoSelectSeat(c.seatsFor)
	}
	return c.takeErr()
}

// Validate reports every visible numeric field outside its current limits.
func (c *Controller) Validate() []*RangeError {
	var errs []*RangeError
	attrs := lo.Keys(c.limits)
	sort.Strings(attrs)
	for _, attr := range attrs {
		if g, ok := limitGroups[attr]; ok && !c.visible[g] {
			continue
		}
		v, ok := c.store.Number(attr)
		if !ok {
			continue
		}
		if l := c.limits[attr]; !l.Contains(v) {
			errs = append(errs, &RangeError{Attr: attr, Value: v, Limit: l})
		}
	}
	return errs
}

// CheckInvariants verifies the cross-field invariants the rules maintain.
func (c *Controller) CheckInvariants() error {
	current := c.store.String(models.AttrCatalogType)
	for _, ct := range models.CatalogTypes {
		if ct == current {
			continue
		}
		for _, attr := range models.ScopeAttributes[ct] {
			if c.store.Has(attr) {
				return fmt.Errorf("%w: %s set while catalog_type=%s", ErrInconsistentAxis, attr, current)
			}
		}
	}

	if c.store.String(models.AttrCouponType) != models.CouponDiscountCode && !c.store.Editing() &&
		c.store.String(models.AttrCode) != "" {
		return fmt.Errorf("%w: code set on a %s coupon", ErrInconsistentAxis, c.store.String(models.AttrCouponType))
	}
	if c.store.String(models.AttrCouponType) == models.CouponDiscountCode {
		q, _ := c.store.Int(models.AttrQuantity)
		if c.store.String(models.AttrCode) != "" && q != 1 {
			return fmt.Errorf("%w: code set with quantity %d", ErrInconsistentAxis, q)
		}
	}

	switch c.store.String(models.AttrVoucherType) {
	case models.VoucherSingleUse:
		if c.store.Has(models.AttrMaxUses) {
			return fmt.Errorf("%w: max_uses set on a single use voucher", ErrInconsistentAxis)
		}
	case models.VoucherMultiUse:
		if n, ok := c.store.Int(models.AttrMaxUses); ok && n < 2 && !c.store.Editing() {
			return fmt.Errorf("%w: multi use voucher with max_uses %d", ErrInconsistentAxis, n)
		}
	}
	return nil
}

// Submit validates the form and hands the record to the persister. On any
// failure the store is left untouched so the user can resubmit.
func (c *Controller) Submit(ctx context.Context) (models.SubmitResult, error) {
	if c.persister == nil {
		return models.SubmitResult{}, errors.New("form: no persister configured")
	}
	if errs := c.Validate(); len(errs) > 0 {
		fe := models.FieldErrors{}
		for _, e := range errs {
			fe.Add(e.Attr, e.Message())
		}
		return models.SubmitResult{}, fe
	}
	if err := c.CheckInvariants(); err != nil {
		c.log.Error("refusing to persist coupon", "error", err)
		return models.SubmitResult{}, err
	}

	rec := c.store.Snapshot()
	if c.store.Editing() {
		id, _ := c.store.Int(models.AttrID)
		delete(rec, models.AttrID)
		if err := c.persister.Update(ctx, int64(id), rec); err != nil {
			return models.SubmitResult{}, err
		}
		return models.SubmitResult{CouponID: int64(id)}, nil
	}

	id, err := c.persister.Create(ctx, rec)
	if err != nil {
		return models.SubmitResult{}, err
	}
	return models.SubmitResult{CouponID: id, Created: true}, nil
}

// Visible reports whether group is currently shown.
func (c *Controller) Visible(g FieldGroup) bool { return c.visible[g] }

// Limit returns the current limit of attr.
func (c *Controller) Limit(attr string) (Limit, bool) {
	l, ok := c.limits[attr]
	return l, ok
}

// SeatOptions lists the seat types offered for the selected course.
func (c *Controller) SeatOptions() []string {
	return lo.Map(c.seats, func(o models.SeatOffering, _ int) string { return o.DisplayName })
}

// SeatsPending reports whether a seat lookup is in flight.
func (c *Controller) SeatsPending() bool { return c.pending != "" }

// State is a serialisable view of the form.
type State struct {
	Editing      bool              `json:"editing"`
	Attributes   models.Attributes `json:"attributes"`
	Visible      []FieldGroup      `json:"visible"`
	Limits       map[string]Limit  `json:"limits"`
	SeatOptions  []string          `json:"seat_options"`
	SeatsPending bool              `json:"seats_pending"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// State snapshots the form for rendering.
func (c *Controller) State() State {
	visible := lo.Filter(AllGroups, func(g FieldGroup, _ int) bool { return c.visible[g] })
	limits := make(map[string]Limit, len(c.limits))
	for k, v := range c.limits {
		limits[k] = v
	}
	st := State{
		Editing:      c.store.Editing(),
		Attributes:   c.store.Snapshot(),
		Visible:      visible,
		Limits:       limits,
		SeatOptions:  c.SeatOptions(),
		SeatsPending: c.SeatsPending(),
	}
	if errs := c.Validate(); len(errs) > 0 {
		st.Errors = make(map[string]string, len(errs))
		for _, e := range errs {
			st.Errors[e.Attr] = e.Message()
		}
	}
	return st
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

type goRunner struct{}

func (goRunner) Submit(task func(ctx context.Context)) error {
	go task(context.Background())
	return nil
}
