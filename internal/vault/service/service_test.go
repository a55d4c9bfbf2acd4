package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"poolshare/internal/ledger/models"
	"poolshare/internal/ledger/store"
	"poolshare/internal/lifecycle"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/audit/publisher"
	auditmemory "poolshare/pkg/platform/audit/store/memory"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/testutil"
)

// =============================================================================
// Credential Vault Test Suite
// =============================================================================

type VaultServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	events  *auditmemory.InMemoryStore
	service *Service
	admin   id.PrincipalID
	member  id.PrincipalID
	group   id.GroupRef
	t0      time.Time
}

func TestVaultServiceSuite(t *testing.T) {
	suite.Run(t, new(VaultServiceSuite))
}

func (s *VaultServiceSuite) SetupTest() {
	s.t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.store = store.New("usd")
	s.events = auditmemory.NewInMemoryStore()
	s.admin = id.NewPrincipalID()
	s.member = id.NewPrincipalID()
	serializer := tx.NewSerializer()

	lc, err := lifecycle.New(s.store, serializer)
	s.Require().NoError(err)
	s.service, err = New(s.store, serializer, lc, s.admin, WithAuditPublisher(publisher.NewPublisher(s.events)))
	s.Require().NoError(err)

	ctx := context.Background()
	svc, err := models.NewServiceOffering("vpn", "VPN", money.New(900, "usd"), 5, s.t0)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateService(ctx, svc))
	g, err := s.store.CreateGroup(ctx, "vpn", s.t0, 24*time.Hour)
	s.Require().NoError(err)
	s.group = g.Ref()
	_, err = s.store.AddMember(ctx, s.group, s.member, 5, s.t0)
	s.Require().NoError(err)
}

func (s *VaultServiceSuite) ctx(p id.PrincipalID) context.Context {
	return testutil.CallerContext(p, s.t0)
}

func (s *VaultServiceSuite) register(p id.PrincipalID) {
	s.Require().NoError(s.service.RegisterPublicKey(s.ctx(p), p, "ssh-ed25519 AAAAC3Nza"))
}

// =============================================================================
// Public keys
// =============================================================================

func (s *VaultServiceSuite) TestRegisterPublicKey() {
	s.Run("empty key is rejected", func() {
		err := s.service.RegisterPublicKey(s.ctx(s.member), s.member, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unauthenticated caller is rejected", func() {
		err := s.service.RegisterPublicKey(context.Background(), id.PrincipalID{}, "key")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing key is reported", func() {
		_, err := s.service.PublicKey(context.Background(), s.member)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingPublicKey))
	})

	s.Run("later registration overwrites", func() {
		s.Require().NoError(s.service.RegisterPublicKey(s.ctx(s.member), s.member, "first"))
		s.Require().NoError(s.service.RegisterPublicKey(s.ctx(s.member), s.member, " second "))
		key, err := s.service.PublicKey(context.Background(), s.member)
		s.Require().NoError(err)
		s.Equal("second", key)
		s.Len(s.events.ListByAction(context.Background(), audit.EventPublicKeyRegistered), 2)
	})
}

// =============================================================================
// Store / Get
// =============================================================================

func (s *VaultServiceSuite) TestStoreCredentials_Gates() {
	s.Run("administrator only", func() {
		s.register(s.member)
		err := s.service.StoreCredentials(s.ctx(s.member), s.member, s.member, "vpn", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("principal must be subscribed", func() {
		outsider := id.NewPrincipalID()
		s.register(outsider)
		err := s.service.StoreCredentials(s.ctx(s.admin), s.admin, outsider, "vpn", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotSubscribed))
	})

	s.Run("principal must have a key", func() {
		keyless := id.NewPrincipalID()
		_, err := s.store.AddMember(context.Background(), s.group, keyless, 5, s.t0)
		s.Require().NoError(err)
		err = s.service.StoreCredentials(s.ctx(s.admin), s.admin, keyless, "vpn", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeMissingPublicKey))
	})

	s.Run("group must be active", func() {
		late := testutil.At(s.ctx(s.admin), s.t0.Add(48*time.Hour))
		err := s.service.StoreCredentials(late, s.admin, s.member, "vpn", []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeSubscriptionExpired))
	})

	s.Run("oversized blob", func() {
		err := s.service.StoreCredentials(s.ctx(s.admin), s.admin, s.member, "vpn", make([]byte, MaxCredentialSize+1))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *VaultServiceSuite) TestRoundTrip() {
	s.register(s.member)

	got, err := s.service.GetCredentials(s.ctx(s.member), s.member, s.member, "vpn")
	s.Require().NoError(err)
	s.Empty(got.Blob, "nothing stored yet")
	s.Nil(got.UpdatedAt)

	s.Require().NoError(s.service.StoreCredentials(s.ctx(s.admin), s.admin, s.member, "vpn", []byte("sealed")))
	got, err = s.service.GetCredentials(s.ctx(s.member), s.member, s.member, "vpn")
	s.Require().NoError(err)
	s.Equal([]byte("sealed"), got.Blob)
	s.Equal(s.group.GroupID, got.GroupID)

	events := s.events.ListByAction(context.Background(), audit.EventCredentialsUpdated)
	s.Require().Len(events, 1)
	s.Equal(s.admin.String(), events[0].ActorID)
}

func (s *VaultServiceSuite) TestGetCredentials_Gates() {
	s.register(s.member)
	s.Require().NoError(s.service.StoreCredentials(s.ctx(s.admin), s.admin, s.member, "vpn", []byte("sealed")))

	s.Run("only the member may read", func() {
		_, err := s.service.GetCredentials(s.ctx(s.admin), s.admin, s.member, "vpn")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("expired read demotes the group", func() {
		late := testutil.At(s.ctx(s.member), s.t0.Add(25*time.Hour))
		_, err := s.service.GetCredentials(late, s.member, s.member, "vpn")
		s.True(dErrors.HasCode(err, dErrors.CodeSubscriptionExpired))

		g, err := s.store.FindGroup(context.Background(), s.group)
		s.Require().NoError(err)
		s.False(g.Active)
	})

	s.Run("removal deletes the entry", func() {
		s.Require().NoError(s.store.RemoveMember(context.Background(), s.group, s.member))
		_, err := s.store.FindCredential(context.Background(), s.group, s.member)
		s.Error(err)
		_, err = s.service.GetCredentials(s.ctx(s.member), s.member, s.member, "vpn")
		s.True(dErrors.HasCode(err, dErrors.CodeNotSubscribed))
	})
}
