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
)

const (
	memberA    = "5b0c2a0e-8a4e-4c55-9e7d-00000000000a"
	memberB    = "5b0c2a0e-8a4e-4c55-9e7d-00000000000b"
	strangerID = "5b0c2a0e-8a4e-4c55-9e7d-0000000000ee"
)

type mockVigilRepo struct {
	vigils      map[string]*models.Vigil
	updateCalls int
	// bumpBeforeUpdate simulates a concurrent writer saving first.
	bumpBeforeUpdate bool
}

func newMockVigilRepo() *mockVigilRepo {
	return &mockVigilRepo{vigils: map[string]*models.Vigil{}}
}

func cloneVigil(v *models.Vigil) *models.Vigil {
	cp := *v
	cp.Attendance = append(models.Attendance{}, v.Attendance...)
	cp.GuardBlocks = make(models.GuardBlocks, len(v.GuardBlocks))
	for i, b := range v.GuardBlocks {
		cp.GuardBlocks[i] = b
		cp.GuardBlocks[i].Slots = make([]models.GuardSlot, len(b.Slots))
		for j, s := range b.Slots {
			s.FirstChoir = append(models.StringList{}, s.FirstChoir...)
			s.SecondChoir = append(models.StringList{}, s.SecondChoir...)
			cp.GuardBlocks[i].Slots[j] = s
		}
	}
	cp.SpecialRoles.TorchBearers = append(models.StringList{}, v.SpecialRoles.TorchBearers...)
	cp.SpecialRoles.MassHelpers = append(models.StringList{}, v.SpecialRoles.MassHelpers...)
	return &cp
}

func (m *mockVigilRepo) List(ctx context.Context, filter models.VigilFilter) ([]models.Vigil, int, error) {
	var out []models.Vigil
	for _, v := range m.vigils {
		out = append(out, *cloneVigil(v))
	}
	return out, len(out), nil
}

func (m *mockVigilRepo) FindByID(ctx context.Context, id string) (*models.Vigil, error) {
	if v, ok := m.vigils[id]; ok {
		return cloneVigil(v), nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVigilRepo) Create(ctx context.Context, vigil *models.Vigil) error {
	vigil.ID = "vigil-1"
	vigil.Version = 1
	m.vigils[vigil.ID] = cloneVigil(vigil)
	return nil
}

func (m *mockVigilRepo) Update(ctx context.Context, vigil *models.Vigil) error {
	m.updateCalls++
	stored, ok := m.vigils[vigil.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if m.bumpBeforeUpdate {
		stored.Version++
	}
	if stored.Version != vigil.Version {
		return repository.ErrStaleVersion
	}
	vigil.Version++
	m.vigils[vigil.ID] = cloneVigil(vigil)
	return nil
}

type mockRoster struct {
	members []models.Member
}

func (m mockRoster) Roster(ctx context.Context, sectionID string) ([]models.Member, error) {
	return m.members, nil
}

func seedVigil(repo *mockVigilRepo, state models.VigilState, members ...string) {
	start := time.Date(2024, 5, 4, 22, 0, 0, 0, time.UTC)
	v := &models.Vigil{
		ID:         "v1",
		StartsAt:   start,
		EndsAt:     start.Add(8 * time.Hour),
		State:      state,
		Version:    1,
		Attendance: models.Attendance{},
	}
	for _, id := range members {
		v.Attendance = append(v.Attendance, models.AttendanceEntry{MemberID: id})
	}
	repo.vigils[v.ID] = v
}

func newVigilService(repo *mockVigilRepo, cfg VigilConfig) *VigilService {
	return NewVigilService(repo, mockRoster{}, &mockAuditRepo{}, nil, zap.NewNop(), NewMetricsService(), cfg)
}

func boolPtr(b bool) *bool { return &b }

func TestVigilServiceCreate(t *testing.T) {
	repo := newMockVigilRepo()
	svc := newVigilService(repo, VigilConfig{})
	start := time.Date(2024, 5, 4, 22, 0, 0, 0, time.UTC)

	vigil, err := svc.Create(context.Background(), dto.CreateVigilRequest{TurnNumber: 3, StartsAt: start, EndsAt: start.Add(8 * time.Hour), Officiant: "Fr. Luis"})
	require.NoError(t, err)
	assert.Equal(t, models.VigilStateScheduled, vigil.State)
	assert.Equal(t, 1, vigil.Version)
	assert.Empty(t, vigil.Attendance)

	_, err = svc.Create(context.Background(), dto.CreateVigilRequest{TurnNumber: 3, StartsAt: start, EndsAt: start.Add(-time.Hour), Officiant: "Fr. Luis"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "ends_at")
}

func TestVigilServiceToggleTwiceRestoresFlag(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, "m1")
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.ToggleAttendance(ctx, "v1", "m1", 0)
	require.NoError(t, err)
	assert.True(t, vigil.Attendance[0].Present)
	require.NotNil(t, vigil.Attendance[0].ArrivalOrder)
	assert.Equal(t, 1, *vigil.Attendance[0].ArrivalOrder)

	vigil, err = svc.ToggleAttendance(ctx, "v1", "m1", vigil.Version)
	require.NoError(t, err)
	assert.False(t, vigil.Attendance[0].Present)
	assert.Nil(t, vigil.Attendance[0].ArrivalOrder)
	assert.Equal(t, 3, vigil.Version)
}

func TestVigilServiceSetAttendanceMissingMemberIsNoop(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled, "m1")
	svc := newVigilService(repo, VigilConfig{})

	vigil, err := svc.SetAttendance(context.Background(), "v1", "ghost", dto.SetAttendanceRequest{Present: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 1, vigil.Version)
	assert.Len(t, vigil.Attendance, 1)
	assert.Zero(t, repo.updateCalls)
}

func TestVigilServiceSetAttendanceAssignsArrivalOrder(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, "m1", "m2")
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	_, err := svc.SetAttendance(ctx, "v1", "m2", dto.SetAttendanceRequest{Present: boolPtr(true)})
	require.NoError(t, err)
	vigil, err := svc.SetAttendance(ctx, "v1", "m1", dto.SetAttendanceRequest{Present: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 2, *vigil.Attendance[0].ArrivalOrder)
	assert.Equal(t, 1, *vigil.Attendance[1].ArrivalOrder)
	assert.Equal(t, 2, vigil.TotalPresent())
}

func TestVigilServiceScenarioTotals(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA, memberB)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	_, err := svc.SetAttendance(ctx, "v1", memberA, dto.SetAttendanceRequest{Present: boolPtr(true)})
	require.NoError(t, err)
	_, err = svc.SetFinance(ctx, "v1", memberA, dto.SetFinanceRequest{MonthlyFee: 10, OverdueFee: 5})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalPresent)
	assert.Equal(t, 15.0, summary.Finance.Total)
}

func TestVigilServiceSetFinanceValidation(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA)
	svc := newVigilService(repo, VigilConfig{})

	_, err := svc.SetFinance(context.Background(), "v1", memberA, dto.SetFinanceRequest{MonthlyFee: -1})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "monthly_fee")

	_, err = svc.SetFinance(context.Background(), "v1", "ghost", dto.SetFinanceRequest{MonthlyFee: 1})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestVigilServiceAddAttendeeDuplicate(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled, memberA)
	svc := newVigilService(repo, VigilConfig{})

	_, err := svc.AddAttendee(context.Background(), "v1", dto.AddAttendeeRequest{MemberID: memberA})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestVigilServiceRejectsMalformedMemberIDs(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.AddGuardBlock(ctx, "v1", dto.AddGuardBlockRequest{Label: "B", Slots: []dto.GuardSlotRequest{{Start: "22:00", End: "23:00"}}})
	require.NoError(t, err)
	block := vigil.GuardBlocks[0]
	updates := repo.updateCalls

	_, err = svc.AddAttendee(ctx, "v1", dto.AddAttendeeRequest{MemberID: "not-a-uuid"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "member_id")

	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: block.Slots[0].ID, Choir: "first", MemberID: "not-a-uuid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.AssignSpecialRole(ctx, "v1", dto.SpecialRoleRequest{Role: "mass_helper", MemberID: "not-a-uuid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	stored := repo.vigils["v1"]
	assert.Len(t, stored.Attendance, 1)
	assert.Empty(t, stored.SpecialRoles.MassHelpers)
	assert.Equal(t, updates, repo.updateCalls)
}

func TestVigilServiceSeedAttendanceSkipsListed(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled, memberA)
	section := "s1"
	repo.vigils["v1"].SectionID = &section
	svc := NewVigilService(repo, mockRoster{members: []models.Member{{ID: memberA}, {ID: memberB}}}, nil, nil, zap.NewNop(), nil, VigilConfig{})

	vigil, err := svc.SeedAttendance(context.Background(), "v1", 0)
	require.NoError(t, err)
	require.Len(t, vigil.Attendance, 2)
	assert.Equal(t, memberB, vigil.Attendance[1].MemberID)
}

func TestVigilServiceStaleVersionRejected(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled, memberA)
	svc := newVigilService(repo, VigilConfig{})

	_, err := svc.ToggleAttendance(context.Background(), "v1", memberA, 7)
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))

	repo.bumpBeforeUpdate = true
	_, err = svc.ToggleAttendance(context.Background(), "v1", memberA, 0)
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))
}

func TestVigilServiceTerminalRejectsMutation(t *testing.T) {
	for _, state := range []models.VigilState{models.VigilStateFinished, models.VigilStateCancelled} {
		repo := newMockVigilRepo()
		seedVigil(repo, state, memberA)
		svc := newVigilService(repo, VigilConfig{})

		_, err := svc.ToggleAttendance(context.Background(), "v1", memberA, 0)
		assert.True(t, errors.Is(err, appErrors.ErrFinalized), state)
	}
}

func TestVigilServiceTransition(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.Transition(ctx, "v1", dto.TransitionRequest{State: "in_progress"}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.VigilStateInProgress, vigil.State)

	_, err = svc.Transition(ctx, "v1", dto.TransitionRequest{State: "finished"}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	vigil, err = svc.Transition(ctx, "v1", dto.TransitionRequest{State: "cancelled"}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.VigilStateCancelled, vigil.State)

	_, err = svc.Transition(ctx, "v1", dto.TransitionRequest{State: "in_progress"}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))
}

func TestVigilServiceGuardAssignments(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA, memberB)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.AddGuardBlock(ctx, "v1", dto.AddGuardBlockRequest{Label: "De 23 a 1", Slots: []dto.GuardSlotRequest{{Start: "23:00", End: "00:00"}, {Start: "0:00", End: "1:00"}}})
	require.NoError(t, err)
	block := vigil.GuardBlocks[0]
	first, second := block.Slots[0].ID, block.Slots[1].ID

	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: first, Choir: "first", MemberID: memberA})
	require.NoError(t, err)
	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: first, Choir: "first", MemberID: memberA})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: second, Choir: "second", MemberID: memberA})
	require.NoError(t, err)

	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: first, Choir: "first", MemberID: strangerID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	available, err := svc.AvailableMembers(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{memberB}, available)

	summary, err := svc.Summary(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, summary.Slots, 2)
	assert.Equal(t, 60, summary.Slots[0].DurationMinutes)

	vigil, err = svc.UnassignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: first, Choir: "first", MemberID: memberA})
	require.NoError(t, err)
	slot, _ := vigil.GuardBlocks[0].Slot(first)
	assert.Empty(t, slot.FirstChoir)
}

func TestVigilServiceSingleAssignmentConfig(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA)
	svc := newVigilService(repo, VigilConfig{GuardSingleAssignment: true})
	ctx := context.Background()

	vigil, err := svc.AddGuardBlock(ctx, "v1", dto.AddGuardBlockRequest{Label: "B", Slots: []dto.GuardSlotRequest{{Start: "22:00", End: "23:00"}, {Start: "23:00", End: "00:00"}}})
	require.NoError(t, err)
	block := vigil.GuardBlocks[0]

	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: block.Slots[0].ID, Choir: "first", MemberID: memberA})
	require.NoError(t, err)
	_, err = svc.AssignGuard(ctx, "v1", dto.GuardAssignmentRequest{BlockID: block.ID, SlotID: block.Slots[1].ID, Choir: "second", MemberID: memberA})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestVigilServiceSplitGuardBlock(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateScheduled)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.AddGuardBlock(ctx, "v1", dto.AddGuardBlockRequest{Label: "De 23 a 1", Slots: []dto.GuardSlotRequest{{Start: "23:30", End: "0:30"}}})
	require.NoError(t, err)

	vigil, err = svc.SplitGuardBlock(ctx, "v1", vigil.GuardBlocks[0].ID, dto.SplitGuardBlockRequest{Parts: 2})
	require.NoError(t, err)
	slots := vigil.GuardBlocks[0].Slots
	require.Len(t, slots, 2)
	assert.Equal(t, "23:30", slots[0].Start)
	assert.Equal(t, "00:00", slots[0].End)
	assert.Equal(t, "00:00", slots[1].Start)
	assert.Equal(t, "00:30", slots[1].End)
}

func TestVigilServiceSpecialRoles(t *testing.T) {
	repo := newMockVigilRepo()
	seedVigil(repo, models.VigilStateInProgress, memberA)
	svc := newVigilService(repo, VigilConfig{})
	ctx := context.Background()

	vigil, err := svc.AssignSpecialRole(ctx, "v1", dto.SpecialRoleRequest{Role: "torch_bearer", MemberID: memberA})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{memberA}, vigil.SpecialRoles.TorchBearers)

	_, err = svc.AssignSpecialRole(ctx, "v1", dto.SpecialRoleRequest{Role: "torch_bearer", MemberID: memberA})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	vigil, err = svc.UnassignSpecialRole(ctx, "v1", dto.SpecialRoleRequest{Role: "torch_bearer", MemberID: memberA})
	require.NoError(t, err)
	assert.Empty(t, vigil.SpecialRoles.TorchBearers)
}
