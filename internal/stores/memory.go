package stores

import (
	"context"
	"sync"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/donations"
)

// MemoryAccounts is an in-process account.Store for local development and
// tests. Token digests are indexed the way the DynamoDB GSIs index them.
type MemoryAccounts struct {
	mu            sync.Mutex
	byEmail       map[string]account.Account
	byReset       map[string]string
	byVerifyToken map[string]string
}

// NewMemoryAccounts returns an empty MemoryAccounts.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byEmail:       make(map[string]account.Account),
		byReset:       make(map[string]string),
		byVerifyToken: make(map[string]string),
	}
}

func (s *MemoryAccounts) Get(_ context.Context, email string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byEmail[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(acct), nil
}

func (s *MemoryAccounts) Create(_ context.Context, acct *account.Account) error {
	if acct == nil || acct.Email == "" {
		return account.ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[acct.Email]; exists {
		return account.ErrExists
	}
	stored := *cloneAccount(*acct)
	s.byEmail[acct.Email] = stored
	s.index(stored)
	return nil
}

func (s *MemoryAccounts) Update(_ context.Context, email string, update account.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byEmail[email]
	if !ok {
		return account.ErrNotFound
	}
	if update.ExpectResetToken != "" && acct.ResetToken != update.ExpectResetToken {
		return account.ErrConflict
	}
	if update.ExpectVerificationToken != "" && acct.VerificationToken != update.ExpectVerificationToken {
		return account.ErrConflict
	}

	s.unindex(acct)
	update.Apply(&acct)
	s.byEmail[email] = acct
	s.index(acct)
	return nil
}

func (s *MemoryAccounts) FindByResetToken(_ context.Context, tokenHash string) (*account.Account, error) {
	return s.findBy(s.byReset, tokenHash)
}

func (s *MemoryAccounts) FindByVerificationToken(_ context.Context, tokenHash string) (*account.Account, error) {
	return s.findBy(s.byVerifyToken, tokenHash)
}

func (s *MemoryAccounts) findBy(index map[string]string, tokenHash string) (*account.Account, error) {
	if tokenHash == "" {
		return nil, account.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := index[tokenHash]
	if !ok {
		return nil, account.ErrNotFound
	}
	acct, ok := s.byEmail[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(acct), nil
}

func (s *MemoryAccounts) index(acct account.Account) {
	if acct.ResetToken != "" {
		s.byReset[acct.ResetToken] = acct.Email
	}
	if acct.VerificationToken != "" {
		s.byVerifyToken[acct.VerificationToken] = acct.Email
	}
}

func (s *MemoryAccounts) unindex(acct account.Account) {
	if acct.ResetToken != "" {
		delete(s.byReset, acct.ResetToken)
	}
	if acct.VerificationToken != "" {
		delete(s.byVerifyToken, acct.VerificationToken)
	}
}

func cloneAccount(acct account.Account) *account.Account {
	out := acct
	if acct.LockedUntil != nil {
		t := *acct.LockedUntil
		out.LockedUntil = &t
	}
	if acct.ResetExpires != nil {
		t := *acct.ResetExpires
		out.ResetExpires = &t
	}
	if acct.VerificationExpires != nil {
		t := *acct.VerificationExpires
		out.VerificationExpires = &t
	}
	return &out
}

// MemoryDonations is an in-process donations.Store.
type MemoryDonations struct {
	mu    sync.Mutex
	byID  map[string]donations.Donation
	order []string
}

// NewMemoryDonations returns an empty MemoryDonations.
func NewMemoryDonations() *MemoryDonations {
	return &MemoryDonations{byID: make(map[string]donations.Donation)}
}

func (s *MemoryDonations) Put(_ context.Context, d *donations.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[d.DonationID]; exists {
		return donations.ErrDuplicate
	}
	s.byID[d.DonationID] = *d
	s.order = append(s.order, d.DonationID)
	return nil
}

func (s *MemoryDonations) Get(_ context.Context, donationID string) (*donations.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[donationID]
	if !ok {
		return nil, donations.ErrNotFound
	}
	return &d, nil
}

func (s *MemoryDonations) ListByEmail(_ context.Context, email string) ([]donations.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []donations.Donation
	for _, id := range s.order {
		if d := s.byID[id]; d.Email == email {
			out = append(out, d)
		}
	}
	return out, nil
}
