package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/jobs"
)

type mockMinuteRepo struct {
	vigils  *mockVigilRepo
	minutes map[string]*models.Minute
}

func newMockMinuteRepo(vigils *mockVigilRepo) *mockMinuteRepo {
	return &mockMinuteRepo{vigils: vigils, minutes: map[string]*models.Minute{}}
}

func (m *mockMinuteRepo) FindByID(ctx context.Context, id string) (*models.Minute, error) {
	if minute, ok := m.minutes[id]; ok {
		cp := *minute
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMinuteRepo) FindByVigilID(ctx context.Context, vigilID string) (*models.Minute, error) {
	for _, minute := range m.minutes {
		if minute.VigilID == vigilID {
			cp := *minute
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMinuteRepo) List(ctx context.Context, filter models.MinuteFilter) ([]models.Minute, int, error) {
	var out []models.Minute
	for _, minute := range m.minutes {
		out = append(out, *minute)
	}
	return out, len(out), nil
}

func (m *mockMinuteRepo) CreateForVigil(ctx context.Context, vigilID string, build repository.MinuteBuilder) (*models.Minute, *models.Vigil, error) {
	stored, ok := m.vigils.vigils[vigilID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	if stored.MinuteID != nil {
		return nil, nil, repository.ErrDuplicate
	}
	locked := cloneVigil(stored)
	minute, err := build(locked)
	if err != nil {
		return nil, nil, err
	}
	minute.ID = "minute-" + vigilID
	minute.VigilID = vigilID
	minute.Version = 1
	m.minutes[minute.ID] = minute
	locked.State = models.VigilStateFinished
	locked.MinuteID = &minute.ID
	locked.Version++
	m.vigils.vigils[vigilID] = locked
	return minute, locked, nil
}

func (m *mockMinuteRepo) UpdateSignatures(ctx context.Context, minute *models.Minute) error {
	stored, ok := m.minutes[minute.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.Version != minute.Version {
		return repository.ErrStaleVersion
	}
	minute.Version++
	cp := *minute
	m.minutes[minute.ID] = &cp
	return nil
}

type minuteFixture struct {
	vigils  *mockVigilRepo
	members *mockMemberRepo
	minutes *mockMinuteRepo
	audit   *mockAuditRepo
	svc     *MinuteService
}

func newMinuteFixture(t *testing.T, state models.VigilState) *minuteFixture {
	t.Helper()
	f := &minuteFixture{vigils: newMockVigilRepo(), members: newMockMemberRepo(), audit: &mockAuditRepo{}}
	f.minutes = newMockMinuteRepo(f.vigils)
	memberSvc := NewMemberService(f.members, f.audit, nil, zap.NewNop())
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	f.svc = NewMinuteService(f.minutes, memberSvc, cache, f.audit, nil, zap.NewNop(), NewMetricsService(), time.Minute)

	seedVigil(f.vigils, state, "m-active", "m-trial", "m-aspirant", "m-absent")
	one := 1
	v := f.vigils.vigils["v1"]
	v.Attendance[0].Present, v.Attendance[0].ArrivalOrder = true, &one
	v.Attendance[0].Finance = models.Finance{MonthlyFee: 10, OverdueFee: 5}
	v.Attendance[1].Present = true
	v.Attendance[1].Finance = models.Finance{ExtraDonation: 2.5}
	v.Attendance[2].Present = true
	v.Attendance[3].Finance = models.Finance{MonthlyFee: 10}

	f.members.add(models.Member{ID: "m-active", Class: models.MemberClassActive})
	f.members.add(models.Member{ID: "m-trial", Class: models.MemberClassTrial})
	f.members.add(models.Member{ID: "m-aspirant", Class: models.MemberClassAspirant})
	f.members.add(models.Member{ID: "m-absent", Class: models.MemberClassActive})
	return f
}

func minuteRequest() dto.GenerateMinuteRequest {
	return dto.GenerateMinuteRequest{
		Schedule:            models.MinuteSchedule{MeetingStart: "21:30", Exposition: "22:00"},
		Communions:          3,
		ExtraordinaryDetail: []models.ExtraordinaryAttendee{{Name: "Guest", SectionTurn: "Turno 5"}},
		HonorariaDetail:     []models.HonorariumDetail{{Name: "Don Pedro", Amount: 20}},
		OtherConcepts:       []models.OtherConcept{{Concept: "Raffle", Amount: 4.25}},
	}
}

func TestMinuteServiceGenerateSnapshot(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)

	minute, err := f.svc.Generate(context.Background(), "v1", minuteRequest(), models.Actor{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 1, minute.AttendanceStats.Active)
	assert.Equal(t, 1, minute.AttendanceStats.Trial)
	assert.Equal(t, 1, minute.AttendanceStats.Aspirants)
	assert.Equal(t, 3, minute.AttendanceStats.Communions)
	assert.Equal(t, 1, minute.AttendanceStats.Extraordinary)
	assert.Equal(t, 3, minute.AttendanceStats.TotalAttendance())

	assert.Equal(t, 20.0, minute.Finance.MonthlyReceipts)
	assert.Equal(t, 5.0, minute.Finance.OverdueReceipts)
	assert.Equal(t, 2.5, minute.Finance.Seeds)
	assert.Equal(t, 20.0, minute.Finance.Honoraria)
	assert.Equal(t, 51.75, minute.Finance.Total)

	vigil := f.vigils.vigils["v1"]
	assert.Equal(t, models.VigilStateFinished, vigil.State)
	require.NotNil(t, vigil.MinuteID)
	assert.Equal(t, minute.ID, *vigil.MinuteID)
	assert.Equal(t, 2, vigil.Version)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionMinuteGenerate, f.audit.logs[0].Action)
}

func TestMinuteServiceSecondGenerationConflicts(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, "v1", minuteRequest(), models.Actor{})
	require.NoError(t, err)

	// the vigil is now finished; clearing the state shows the minute reference alone blocks a second acta
	f.vigils.vigils["v1"].State = models.VigilStateInProgress
	_, err = f.svc.Generate(ctx, "v1", minuteRequest(), models.Actor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMinuteExists))
	assert.Len(t, f.minutes.minutes, 1)
}

func TestMinuteServiceGenerateRejectsCancelledVigil(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateCancelled)

	_, err := f.svc.Generate(context.Background(), "v1", minuteRequest(), models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))
	assert.Empty(t, f.minutes.minutes)
}

func TestMinuteServiceGenerateStaleVigilVersion(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	req := minuteRequest()
	req.VigilVersion = 9

	_, err := f.svc.Generate(context.Background(), "v1", req, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))
}

func TestMinuteServiceGenerateValidatesSchedule(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	req := minuteRequest()
	req.Schedule.MeetingStart = "25:99"

	_, err := f.svc.Generate(context.Background(), "v1", req, models.Actor{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "schedule.meeting_start")
}

func TestMinuteServiceAppliesDischarges(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	req := minuteRequest()
	memberID := "m-absent"
	req.Movements.Discharges = []models.Discharge{{MemberID: &memberID, Cause: "moved"}}

	_, err := f.svc.Generate(context.Background(), "v1", req, models.Actor{})
	require.Error(t, err, "member ids must be uuids")

	memberID = "5b0c2a0e-8a4e-4c55-9e7d-000000000001"
	f.members.add(models.Member{ID: memberID, Class: models.MemberClassActive})
	address := "Calle Mayor 1"
	req.Movements.AddressChanges = []models.AddressChange{{MemberID: &memberID, NewAddress: address}}
	_, err = f.svc.Generate(context.Background(), "v1", req, models.Actor{})
	require.NoError(t, err)

	member := f.members.members[memberID]
	assert.Equal(t, models.MemberClassDischarged, member.Class)
	require.NotNil(t, member.Address)
	assert.Equal(t, address, *member.Address)
}

func TestMinuteServiceQueuesMovements(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	queue := jobs.NewQueue("member-movements", f.svc.HandleMovement, jobs.QueueConfig{RetryDelay: time.Millisecond})
	queue.Start(context.Background())
	f.svc.UseMovementQueue(queue)

	memberID := "5b0c2a0e-8a4e-4c55-9e7d-000000000002"
	f.members.add(models.Member{ID: memberID, Class: models.MemberClassActive})
	req := minuteRequest()
	req.Movements.Discharges = []models.Discharge{{MemberID: &memberID, Cause: "deceased"}}

	_, err := f.svc.Generate(context.Background(), "v1", req, models.Actor{UserID: "u1"})
	require.NoError(t, err)
	queue.Stop()

	assert.Equal(t, models.MemberClassDischarged, f.members.members[memberID].Class)
}

func TestMinuteServiceHandleMovementDropsRejectedMembers(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)

	err := f.svc.HandleMovement(context.Background(), jobs.Job{
		Kind:    MovementAddressChange,
		Payload: MovementTask{MemberID: "5b0c2a0e-8a4e-4c55-9e7d-0000000000ff", Address: "Nowhere"},
	})
	assert.NoError(t, err)

	err = f.svc.HandleMovement(context.Background(), jobs.Job{Kind: "member.unknown", Payload: MovementTask{}})
	assert.Error(t, err)
}

func TestMinuteServiceGenerateRejectsFreeTextSignatures(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	req := minuteRequest()
	req.Signatures = models.Signatures{ShiftChief: "Luis Gómez"}

	_, err := f.svc.Generate(context.Background(), "v1", req, models.Actor{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "signatures.shift_chief")
	assert.Equal(t, models.VigilStateInProgress, f.vigils.vigils["v1"].State)
}

func TestMinuteServiceSign(t *testing.T) {
	f := newMinuteFixture(t, models.VigilStateInProgress)
	ctx := context.Background()
	for _, id := range []string{chiefID, secretaryID, treasurerID} {
		f.members.add(models.Member{ID: id, Class: models.MemberClassActive})
	}
	minute, err := f.svc.Generate(ctx, "v1", minuteRequest(), models.Actor{})
	require.NoError(t, err)
	assert.False(t, minute.Complete())

	_, err = f.svc.Sign(ctx, minute.ID, dto.SignMinuteRequest{ShiftChief: "Luis Gómez", Version: 1}, models.Actor{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "shift_chief")

	_, err = f.svc.Sign(ctx, minute.ID, dto.SignMinuteRequest{Secretary: "5b0c2a0e-8a4e-4c55-9e7d-0000000000ff", Version: 1}, models.Actor{})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "unknown member", appErr.Details["secretary"])

	signed, err := f.svc.Sign(ctx, minute.ID, dto.SignMinuteRequest{ShiftChief: chiefID, Secretary: secretaryID, Version: 1}, models.Actor{})
	require.NoError(t, err)
	assert.False(t, signed.Complete())
	assert.Equal(t, 2, signed.Version)
	assert.Equal(t, chiefID, signed.Signatures.ShiftChief)

	_, err = f.svc.Sign(ctx, minute.ID, dto.SignMinuteRequest{Treasurer: treasurerID, Version: 1}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))

	signed, err = f.svc.Sign(ctx, minute.ID, dto.SignMinuteRequest{Treasurer: treasurerID, Version: 2}, models.Actor{})
	require.NoError(t, err)
	assert.True(t, signed.Complete())

	fetched, err := f.svc.Get(ctx, minute.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Complete())
}
