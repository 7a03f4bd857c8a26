package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/core/ports/repositories"
	"github.com/ledgerclerk/clerk/internal/upstream"
)

// LinkService manages the lifecycle of upstream connections.
type LinkService struct {
	provider        upstream.Provider
	linkRepo        repositories.LinkRepository
	accountRepo     repositories.AccountRepository
	institutionRepo repositories.InstitutionRepository
	logger          *log.Logger
}

func NewLinkService(
	provider upstream.Provider,
	linkRepo repositories.LinkRepository,
	accountRepo repositories.AccountRepository,
	institutionRepo repositories.InstitutionRepository,
	logger *log.Logger,
) *LinkService {
	return &LinkService{
		provider:        provider,
		linkRepo:        linkRepo,
		accountRepo:     accountRepo,
		institutionRepo: institutionRepo,
		logger:          logger,
	}
}

// AddLink exchanges nothing; it records an already-authorized connection. The
// item id and institution come from the provider so the caller cannot record
// a link under the wrong item.
func (s *LinkService) AddLink(ctx context.Context, alias, accessToken string) (domain.Link, error) {
	item, err := s.provider.GetItem(ctx, accessToken)
	if err != nil {
		return domain.Link{}, fmt.Errorf("fetching item for new link: %w", err)
	}

	link := domain.Link{
		ItemID:        item.ItemID,
		Alias:         alias,
		AccessToken:   accessToken,
		State:         domain.LinkActive,
		InstitutionID: item.InstitutionID,
	}
	if err := s.linkRepo.SaveLink(ctx, link); err != nil {
		return domain.Link{}, fmt.Errorf("saving link %s: %w", alias, err)
	}
	s.logger.Info("link added", "alias", alias, "item_id", item.ItemID)
	return link, nil
}

// Reauthorize replaces a degraded link's credential and restores it to the
// active state.
func (s *LinkService) Reauthorize(ctx context.Context, itemID, accessToken string) error {
	link, err := s.linkRepo.FindLinkByItemID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("finding link %s: %w", itemID, err)
	}
	link.AccessToken = accessToken
	link.State = domain.LinkActive
	link.DegradedReason = ""
	if err := s.linkRepo.UpdateLink(ctx, *link); err != nil {
		return fmt.Errorf("updating link %s: %w", itemID, err)
	}
	s.logger.Info("link re-authorized", "alias", link.Alias, "item_id", itemID)
	return nil
}

// Status asks the provider about every link and reconciles the stored state
// with what the provider reports. Links the provider flags with a credential
// error are degraded on the spot. It returns the reconciled links and an
// institution-id to display-name index.
func (s *LinkService) Status(ctx context.Context) ([]domain.Link, map[string]string, error) {
	links, err := s.linkRepo.ListLinks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing links: %w", err)
	}

	for i, link := range links {
		item, err := s.provider.GetItem(ctx, link.AccessToken)
		if err != nil {
			s.logger.Error("status check failed", "alias", link.Alias, "err", err)
			continue
		}
		if item.Error != nil && item.Error.AuthFailure() && link.State == domain.LinkActive {
			link.Degrade(item.Error.Code)
			if err := s.linkRepo.UpdateLink(ctx, link); err != nil {
				return nil, nil, fmt.Errorf("recording degraded state for %s: %w", link.ItemID, err)
			}
			links[i] = link
		}
	}

	institutions, err := s.institutionRepo.ListInstitutions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing institutions: %w", err)
	}
	names := make(map[string]string, len(institutions))
	for _, institution := range institutions {
		names[institution.ID] = institution.Name
	}
	return links, names, nil
}

// ListAccounts returns the cached accounts for every link, or for a single
// item when itemID is non-empty.
func (s *LinkService) ListAccounts(ctx context.Context, itemID string) ([]domain.Account, error) {
	if itemID != "" {
		return s.accountRepo.ListAccountsByItem(ctx, itemID)
	}

	links, err := s.linkRepo.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	var accounts []domain.Account
	for _, link := range links {
		linked, err := s.accountRepo.ListAccountsByItem(ctx, link.ItemID)
		if err != nil {
			return nil, fmt.Errorf("listing accounts for %s: %w", link.ItemID, err)
		}
		accounts = append(accounts, linked...)
	}
	return accounts, nil
}

// DeleteLink revokes the access grant upstream and then removes the stored
// link. The revocation comes first: a delete that leaves a live credential
// behind is worse than a revoked credential with a stale row.
func (s *LinkService) DeleteLink(ctx context.Context, itemID string) error {
	link, err := s.linkRepo.FindLinkByItemID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("finding link %s: %w", itemID, err)
	}

	if err := s.provider.RevokeAccessGrant(ctx, link.AccessToken); err != nil {
		return fmt.Errorf("revoking access grant for %s: %w", itemID, err)
	}

	if _, err := s.linkRepo.DeleteLink(ctx, itemID); err != nil {
		return fmt.Errorf("deleting link %s: %w", itemID, err)
	}
	s.logger.Info("link deleted", "alias", link.Alias, "item_id", itemID)
	return nil
}

// RefreshInstitutions re-populates the institution cache for the given
// country codes.
func (s *LinkService) RefreshInstitutions(ctx context.Context, countryCodes []string) error {
	institutions, err := s.provider.ListInstitutions(ctx, countryCodes)
	if err != nil {
		return fmt.Errorf("listing upstream institutions: %w", err)
	}
	for _, institution := range institutions {
		if err := s.institutionRepo.SaveInstitution(ctx, institution); err != nil {
			return fmt.Errorf("caching institution %s: %w", institution.ID, err)
		}
	}
	s.logger.Info("institution cache refreshed", "count", len(institutions))
	return nil
}
