package service

import (
	"context"
	"fmt"

	"booking-service/api"
	"booking-service/internal/models"
	"booking-service/pkg/response"
)

// Catalog

// catalogProvider resolves a provider that sells catalog items. Doctors have
// no catalog.
func (s *Service) catalogProvider(ctx context.Context, providerID, kind string) (*models.Provider, error) {
	provider, err := s.resolveProvider(ctx, providerID, kind)
	if err != nil {
		return nil, err
	}

	if provider.Kind == models.KindDoctor {
		return nil, fmt.Errorf("doctors have no catalog: %w", response.ErrBadRequest)
	}

	return provider, nil
}

func (s *Service) GetCatalog(ctx context.Context, providerID, kind string) (*api.Catalog, error) {
	const op = "service.GetCatalog"

	provider, err := s.catalogProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toCatalogDTO(provider.Catalog, provider.Offers), nil
}

// UpdateCatalog replaces the provider's items. An item still bundled in an
// offer cannot be dropped; update the offers first. Existing bookings keep
// the name and price they were made with.
func (s *Service) UpdateCatalog(ctx context.Context, providerID, kind string, req []api.CatalogItem) (*api.Catalog, error) {
	const op = "service.UpdateCatalog"

	provider, err := s.catalogProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.CatalogItem, 0, len(req))
	for _, it := range req {
		items = append(items, models.CatalogItem{
			ID:              it.ID,
			Name:            it.Name,
			Price:           it.Price,
			DurationMinutes: it.DurationMinutes,
		})
	}

	if err := validateCatalog(items); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var offers []models.Offer
	err = s.withProviderLock(ctx, provider.ID, func() error {
		fresh, err := s.store.GetProvider(ctx, provider.ID)
		if err != nil {
			return err
		}

		if err := validateOffers(fresh.Offers, items); err != nil {
			return err
		}
		offers = fresh.Offers

		return s.store.ReplaceCatalog(ctx, provider.ID, items)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toCatalogDTO(items, offers), nil
}

// UpdateOffers replaces the provider's offers. Every offer must bundle items
// from the current catalog.
func (s *Service) UpdateOffers(ctx context.Context, providerID, kind string, req []api.Offer) (*api.Catalog, error) {
	const op = "service.UpdateOffers"

	provider, err := s.catalogProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	offers := make([]models.Offer, 0, len(req))
	for _, o := range req {
		offers = append(offers, models.Offer{
			ID:              o.ID,
			Name:            o.Name,
			Price:           o.Price,
			DurationMinutes: o.DurationMinutes,
			ItemIDs:         o.ItemIDs,
		})
	}

	var items []models.CatalogItem
	err = s.withProviderLock(ctx, provider.ID, func() error {
		fresh, err := s.store.GetProvider(ctx, provider.ID)
		if err != nil {
			return err
		}

		if err := validateOffers(offers, fresh.Catalog); err != nil {
			return err
		}
		items = fresh.Catalog

		return s.store.ReplaceOffers(ctx, provider.ID, offers)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toCatalogDTO(items, offers), nil
}

func validateCatalog(items []models.CatalogItem) error {
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		if it.ID == "" || it.Name == "" {
			return fmt.Errorf("catalog item needs an id and a name: %w", response.ErrBadRequest)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate catalog item %q: %w", it.ID, response.ErrBadRequest)
		}
		seen[it.ID] = struct{}{}

		if it.Price < 0 {
			return fmt.Errorf("catalog item %q: negative price: %w", it.ID, response.ErrBadRequest)
		}
		if it.DurationMinutes <= 0 {
			return fmt.Errorf("catalog item %q: %d minutes: %w", it.ID, it.DurationMinutes, response.ErrInvalidDuration)
		}
	}

	return nil
}

func validateOffers(offers []models.Offer, items []models.CatalogItem) error {
	known := make(map[string]struct{}, len(items))
	for _, it := range items {
		known[it.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(offers))
	for _, o := range offers {
		if o.ID == "" || o.Name == "" {
			return fmt.Errorf("offer needs an id and a name: %w", response.ErrBadRequest)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("duplicate offer %q: %w", o.ID, response.ErrBadRequest)
		}
		seen[o.ID] = struct{}{}

		if o.Price < 0 {
			return fmt.Errorf("offer %q: negative price: %w", o.ID, response.ErrBadRequest)
		}
		if o.DurationMinutes <= 0 {
			return fmt.Errorf("offer %q: %d minutes: %w", o.ID, o.DurationMinutes, response.ErrInvalidDuration)
		}
		if len(o.ItemIDs) == 0 {
			return fmt.Errorf("offer %q bundles no items: %w", o.ID, response.ErrBadRequest)
		}
		for _, id := range o.ItemIDs {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("offer %q references unknown item %q: %w", o.ID, id, response.ErrBadRequest)
			}
		}
	}

	return nil
}

func toCatalogDTO(items []models.CatalogItem, offers []models.Offer) *api.Catalog {
	out := &api.Catalog{
		Items:  make([]api.CatalogItem, 0, len(items)),
		Offers: make([]api.Offer, 0, len(offers)),
	}

	for _, it := range items {
		out.Items = append(out.Items, api.CatalogItem{
			ID:              it.ID,
			Name:            it.Name,
			Price:           it.Price,
			DurationMinutes: it.DurationMinutes,
		})
	}
	for _, o := range offers {
		itemIDs := o.ItemIDs
		if itemIDs == nil {
			itemIDs = []string{}
		}
		out.Offers = append(out.Offers, api.Offer{
			ID:              o.ID,
			Name:            o.Name,
			Price:           o.Price,
			DurationMinutes: o.DurationMinutes,
			ItemIDs:         itemIDs,
		})
	}

	return out
}
