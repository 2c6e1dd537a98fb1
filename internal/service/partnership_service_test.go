package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/testutil"
)

func TestPartnershipRequestAcceptCreatesBothEntries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y := testutil.SeedCompany(t, e.db, "Y")

	req, err := e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, "  let's work together ")
	require.NoError(t, err)
	assert.Equal(t, model.PartnershipRequestPending, req.Status)
	assert.Equal(t, "let's work together", req.Message)

	pending, err := e.partnerships.ListPendingRequests(ctx, testutil.Principal(y))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, e.partnerships.RespondToPartnershipRequest(ctx, testutil.Principal(y), req.ID, true))

	for _, pair := range [][2]*model.Company{{x, y}, {y, x}} {
		partners, err := e.partnerships.ListPartners(ctx, testutil.Principal(pair[0]))
		require.NoError(t, err)
		require.Len(t, partners, 1)
		entry := partners[0]
		assert.Equal(t, pair[1].ID, entry.PartnerCompanyID)
		assert.True(t, entry.IsActive())
		assert.False(t, entry.AutoAssignmentEnabled)
		assert.True(t, entry.RequiresAcceptance)
		assert.Empty(t, entry.Zones)
	}

	err = e.partnerships.RespondToPartnershipRequest(ctx, testutil.Principal(y), req.ID, false)
	require.ErrorIs(t, err, ErrConflict)

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(y), x.ID, "")
	require.ErrorIs(t, err, ErrConflict, "already partners")

	assert.Equal(t, []EventType{EventPartnershipRequested, EventPartnershipAccepted}, e.notifier.Types())
}

func TestPartnershipRequestDeclineHasNoSideEffects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y := testutil.SeedCompany(t, e.db, "Y")

	req, err := e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, "")
	require.NoError(t, err)
	require.NoError(t, e.partnerships.RespondToPartnershipRequest(ctx, testutil.Principal(y), req.ID, false))

	for _, company := range []*model.Company{x, y} {
		partners, err := e.partnerships.ListPartners(ctx, testutil.Principal(company))
		require.NoError(t, err)
		assert.Empty(t, partners)
	}

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, "second try")
	require.NoError(t, err, "a declined request does not block a new one")
}

func TestRequestPartnershipValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y := testutil.SeedCompany(t, e.db, "Y")
	inactive := testutil.SeedCompany(t, e.db, "Dormant")
	require.NoError(t, e.db.Model(&model.Company{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	_, err := e.partnerships.RequestPartnership(ctx, testutil.Principal(x), x.ID, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, strings.Repeat("a", 501))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(x), inactive.ID, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(x), uuid.New(), "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, "")
	require.NoError(t, err)
	_, err = e.partnerships.RequestPartnership(ctx, testutil.Principal(y), x.ID, "")
	require.ErrorIs(t, err, ErrConflict, "a pending request in either direction blocks a new one")
}

func TestRespondToPartnershipRequestPermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := uuid.New()
	x := testutil.SeedCompany(t, e.db, "X")
	y := testutil.SeedCompany(t, e.db, "Y", testutil.WithUsers(model.CompanyUser{UserID: member, Role: model.UserRoleMember}))

	req, err := e.partnerships.RequestPartnership(ctx, testutil.Principal(x), y.ID, "")
	require.NoError(t, err)

	memberPrincipal := model.Principal{UserID: member, CompanyID: y.ID, Role: model.UserRoleMember}
	require.ErrorIs(t, e.partnerships.RespondToPartnershipRequest(ctx, memberPrincipal, req.ID, true), ErrPermissionDenied)
	require.ErrorIs(t, e.partnerships.RespondToPartnershipRequest(ctx, testutil.Principal(x), req.ID, true), ErrPermissionDenied)
	require.ErrorIs(t, e.partnerships.RespondToPartnershipRequest(ctx, testutil.Principal(y), uuid.New(), true), ErrNotFound)
}

func TestUpdatePartnerSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y := testutil.SeedCompany(t, e.db, "Y")
	z := testutil.SeedCompany(t, e.db, "Z")
	e.setPartners(t, x, manualEntry(y.ID), manualEntry(z.ID))

	entry, err := e.partnerships.UpdatePartnerSettings(ctx, testutil.Principal(x), y.ID, PartnerSettingsInput{
		AutoAssignmentEnabled: true,
		Zones: []model.AutoAssignmentZone{
			{ZipCodes: []string{" 10001 ", "10002", "10001", ""}, DefaultFee: 60, Priority: 1, Enabled: true},
		},
		RequiresAcceptance: false,
		NotifyOnShare:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10002"}, entry.Zones[0].ZipCodes)

	stored, err := e.store.Companies.Get(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, stored.JobSharePartners, 2)
	_, yEntry := stored.Partner(y.ID)
	require.NotNil(t, yEntry)
	assert.True(t, yEntry.AutoAssignmentEnabled)
	assert.False(t, yEntry.RequiresAcceptance)
	_, zEntry := stored.Partner(z.ID)
	require.NotNil(t, zEntry)
	assert.True(t, zEntry.Equal(manualEntry(z.ID)), "other entries are left untouched")

	invalid := []PartnerSettingsInput{
		{AutoAssignmentEnabled: true},
		{AutoAssignmentEnabled: true, Zones: []model.AutoAssignmentZone{{ZipCodes: []string{" "}, DefaultFee: 10, Enabled: true}}},
		{AutoAssignmentEnabled: true, Zones: []model.AutoAssignmentZone{{ZipCodes: []string{"1"}, DefaultFee: 0, Enabled: true}}},
		{AutoAssignmentEnabled: true, Zones: []model.AutoAssignmentZone{{ZipCodes: []string{"1"}, DefaultFee: 5, Priority: -1, Enabled: true}}},
		{AutoAssignmentEnabled: true, Zones: []model.AutoAssignmentZone{{ZipCodes: []string{"1"}, DefaultFee: 5}}},
	}
	for _, input := range invalid {
		_, err := e.partnerships.UpdatePartnerSettings(ctx, testutil.Principal(x), y.ID, input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err = e.partnerships.UpdatePartnerSettings(ctx, testutil.Principal(x), uuid.New(), PartnerSettingsInput{})
	require.ErrorIs(t, err, ErrNotFound)

	member := model.Principal{UserID: uuid.New(), CompanyID: x.ID, Role: model.UserRoleMember}
	_, err = e.partnerships.UpdatePartnerSettings(ctx, member, y.ID, PartnerSettingsInput{})
	require.ErrorIs(t, err, ErrPermissionDenied)

	disabled, err := e.partnerships.UpdatePartnerSettings(ctx, testutil.Principal(x), y.ID, PartnerSettingsInput{
		Zones:              []model.AutoAssignmentZone{{ZipCodes: []string{"1"}, DefaultFee: 5, Enabled: true}},
		RequiresAcceptance: true,
	})
	require.NoError(t, err)
	assert.Empty(t, disabled.Zones)
}

func TestMutatePartnerEntryPreservesConcurrentEditOfOtherEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y, z := uuid.New(), uuid.New()
	e.setPartners(t, x, manualEntry(y), manualEntry(z))

	raced := false
	entry, err := mutatePartnerEntry(ctx, e.store.Companies, x.ID, y,
		func(current *model.PartnerEntry) (model.PartnerEntry, error) {
			if !raced {
				raced = true
				concurrent, err := e.store.Companies.Get(ctx, x.ID)
				require.NoError(t, err)
				partners := []model.PartnerEntry(concurrent.JobSharePartners)
				_, other := concurrent.Partner(z)
				other.NotifyOnStatusChange = false
				require.NoError(t, e.store.Companies.ReplacePartners(ctx, x.ID, concurrent.Version, partners))
			}
			next := *current
			next.NotifyOnShare = false
			return next, nil
		})
	require.NoError(t, err)
	assert.False(t, entry.NotifyOnShare)

	stored, err := e.store.Companies.Get(ctx, x.ID)
	require.NoError(t, err)
	_, yEntry := stored.Partner(y)
	_, zEntry := stored.Partner(z)
	assert.False(t, yEntry.NotifyOnShare)
	assert.False(t, zEntry.NotifyOnStatusChange, "the concurrent edit survives")
	assert.True(t, zEntry.NotifyOnShare)
}

func TestMutatePartnerEntryConflictsOnConcurrentEditOfSameEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := testutil.SeedCompany(t, e.db, "X")
	y := uuid.New()
	e.setPartners(t, x, manualEntry(y))

	_, err := mutatePartnerEntry(ctx, e.store.Companies, x.ID, y,
		func(current *model.PartnerEntry) (model.PartnerEntry, error) {
			concurrent, err := e.store.Companies.Get(ctx, x.ID)
			require.NoError(t, err)
			partners := []model.PartnerEntry(concurrent.JobSharePartners)
			partners[0].RequiresAcceptance = false
			require.NoError(t, e.store.Companies.ReplacePartners(ctx, x.ID, concurrent.Version, partners))

			next := *current
			next.NotifyOnShare = false
			return next, nil
		})
	require.ErrorIs(t, err, ErrConflict)

	stored, err := e.store.Companies.Get(ctx, x.ID)
	require.NoError(t, err)
	assert.False(t, stored.JobSharePartners[0].RequiresAcceptance)
	assert.True(t, stored.JobSharePartners[0].NotifyOnShare)
}

func TestSearchDirectory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	listed := testutil.SeedCompany(t, e.db, "Listed", testutil.WithZip("30003"), testutil.WithDirectoryListing())
	testutil.SeedCompany(t, e.db, "Hidden", testutil.WithZip("30003"))
	testutil.SeedCompany(t, e.db, "Elsewhere", testutil.WithZip("40004"), testutil.WithDirectoryListing())

	found, err := e.partnerships.SearchDirectory(ctx, " 30003 ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, listed.ID, found[0].ID)

	_, err = e.partnerships.SearchDirectory(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}
