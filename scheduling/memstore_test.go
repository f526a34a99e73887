package scheduling

import (
	"context"
	"sync"
	"time"
)

// memStore is the test double for Store. Data lives in maps guarded by mu;
// the per-slot-key mutexes give the same serialization the SQL store gets
// from SELECT ... FOR UPDATE. Writes apply immediately and Rollback only
// releases locks, which is enough for the engine's check-then-write flows.
type memStore struct {
	mu       sync.Mutex
	slots    map[int]*Slot
	appts    map[int]*Appointment
	passes   map[int]*GuidancePass
	keyLocks map[SlotKey]*sync.Mutex
	nextSlot int
	nextAppt int
	nextPass int
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[int]*Slot),
		appts:    make(map[int]*Appointment),
		passes:   make(map[int]*GuidancePass),
		keyLocks: make(map[SlotKey]*sync.Mutex),
		nextSlot: 1,
		nextAppt: 1,
		nextPass: 1,
	}
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: m}, nil
}

type memTx struct {
	store *memStore
	held  *sync.Mutex
}

func (t *memTx) Commit(ctx context.Context) error   { t.release(); return nil }
func (t *memTx) Rollback(ctx context.Context) error { t.release(); return nil }

func (t *memTx) release() {
	if t.held != nil {
		t.held.Unlock()
		t.held = nil
	}
}

func (t *memTx) lockKey(key SlotKey) {
	t.store.mu.Lock()
	l, ok := t.store.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		t.store.keyLocks[key] = l
	}
	t.store.mu.Unlock()
	l.Lock()
	t.held = l
}

func (t *memTx) LockSlot(ctx context.Context, id int) (*Slot, error) {
	t.store.mu.Lock()
	s, ok := t.store.slots[id]
	var key SlotKey
	if ok {
		key = s.Key()
	}
	t.store.mu.Unlock()
	if !ok {
		return nil, nil
	}
	t.lockKey(key)
	return t.store.GetSlot(ctx, id)
}

func (t *memTx) LockSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	t.lockKey(key)
	slot, err := t.store.GetSlotByKey(ctx, key)
	if err != nil || slot == nil {
		t.release()
		return nil, err
	}
	return slot, nil
}

// The tx read/write surface delegates to the shared maps.

func (t *memTx) GetSlot(ctx context.Context, id int) (*Slot, error) { return t.store.GetSlot(ctx, id) }
func (t *memTx) GetSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	return t.store.GetSlotByKey(ctx, key)
}
func (t *memTx) SlotExists(ctx context.Context, key SlotKey) (bool, error) {
	return t.store.SlotExists(ctx, key)
}
func (t *memTx) ListActiveSlots(ctx context.Context, fromDate string) ([]Slot, error) {
	return t.store.ListActiveSlots(ctx, fromDate)
}
func (t *memTx) ListSlotsForDate(ctx context.Context, date string) ([]Slot, error) {
	return t.store.ListSlotsForDate(ctx, date)
}
func (t *memTx) ListActiveSlotsOn(ctx context.Context, date string) ([]Slot, error) {
	return t.store.ListActiveSlotsOn(ctx, date)
}
func (t *memTx) ListAllSlots(ctx context.Context) ([]Slot, error) { return t.store.ListAllSlots(ctx) }
func (t *memTx) InsertSlot(ctx context.Context, slot *Slot) error {
	return t.store.InsertSlot(ctx, slot)
}
func (t *memTx) UpdateSlot(ctx context.Context, slot *Slot) error {
	return t.store.UpdateSlot(ctx, slot)
}
func (t *memTx) SetSlotActive(ctx context.Context, id int, active bool, updatedAt time.Time) error {
	return t.store.SetSlotActive(ctx, id, active, updatedAt)
}
func (t *memTx) SetSlotCount(ctx context.Context, id int, count int, updatedAt time.Time) error {
	return t.store.SetSlotCount(ctx, id, count, updatedAt)
}
func (t *memTx) DeleteSlot(ctx context.Context, id int) error { return t.store.DeleteSlot(ctx, id) }
func (t *memTx) GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	return t.store.GetAppointment(ctx, id)
}
func (t *memTx) InsertAppointment(ctx context.Context, appt *Appointment) error {
	return t.store.InsertAppointment(ctx, appt)
}
func (t *memTx) SetAppointmentStatus(ctx context.Context, id int, status Status, reason *string, updatedAt time.Time) error {
	return t.store.SetAppointmentStatus(ctx, id, status, reason, updatedAt)
}
func (t *memTx) CountAppointments(ctx context.Context, key SlotKey, statuses ...Status) (int, error) {
	return t.store.CountAppointments(ctx, key, statuses...)
}
func (t *memTx) ListAppointments(ctx context.Context, key SlotKey, status Status) ([]Appointment, error) {
	return t.store.ListAppointments(ctx, key, status)
}
func (t *memTx) InsertGuidancePass(ctx context.Context, pass *GuidancePass) error {
	return t.store.InsertGuidancePass(ctx, pass)
}

func (m *memStore) GetSlot(ctx context.Context, id int) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.Key() == key {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SlotExists(ctx context.Context, key SlotKey) (bool, error) {
	s, _ := m.GetSlotByKey(ctx, key)
	return s != nil, nil
}

func (m *memStore) ListActiveSlots(ctx context.Context, fromDate string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Active && s.Date >= fromDate {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListSlotsForDate(ctx context.Context, date string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Date == date {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveSlotsOn(ctx context.Context, date string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Active && s.Date == date {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListAllSlots(ctx context.Context) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) InsertSlot(ctx context.Context, slot *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.ID = m.nextSlot
	m.nextSlot++
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *memStore) UpdateSlot(ctx context.Context, slot *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slot.ID]
	if !ok {
		return ErrNotFound
	}
	s.Date = slot.Date
	s.TimeLabel = slot.TimeLabel
	s.MaxCapacity = slot.MaxCapacity
	s.UpdatedAt = slot.UpdatedAt
	return nil
}

func (m *memStore) SetSlotActive(ctx context.Context, id int, active bool, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = active
	s.UpdatedAt = updatedAt
	return nil
}

func (m *memStore) SetSlotCount(ctx context.Context, id int, count int, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	s.CurrentCount = count
	s.UpdatedAt = updatedAt
	return nil
}

func (m *memStore) DeleteSlot(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *memStore) GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) InsertAppointment(ctx context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt.ID = m.nextAppt
	m.nextAppt++
	cp := *appt
	m.appts[appt.ID] = &cp
	return nil
}

func (m *memStore) SetAppointmentStatus(ctx context.Context, id int, status Status, reason *string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.RejectReason = reason
	a.UpdatedAt = updatedAt
	return nil
}

func (m *memStore) CountAppointments(ctx context.Context, key SlotKey, statuses ...Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.appts {
		if a.Key() != key {
			continue
		}
		if len(statuses) == 0 {
			count++
			continue
		}
		for _, st := range statuses {
			if a.Status == st {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *memStore) ListAppointments(ctx context.Context, key SlotKey, status Status) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for i := 1; i < m.nextAppt; i++ {
		a, ok := m.appts[i]
		if ok && a.Key() == key && a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) InsertGuidancePass(ctx context.Context, pass *GuidancePass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.passes {
		if p.AppointmentID == pass.AppointmentID {
			return ErrConflict
		}
	}
	pass.ID = m.nextPass
	m.nextPass++
	cp := *pass
	m.passes[pass.ID] = &cp
	return nil
}

// fakeClock is a settable clock for tests, pinned to the office offset.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(value string) *fakeClock {
	loc := time.FixedZone("OFFICE", 8*3600)
	t, err := time.ParseInLocation("2006-01-02 3:04 PM", value, loc)
	if err != nil {
		panic(err)
	}
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(value string) {
	t, err := time.ParseInLocation("2006-01-02 3:04 PM", value, c.now.Location())
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
