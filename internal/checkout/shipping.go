package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// resolveShipping fills the recipient fields. With UseProfile set, blank fields come from
// the stored customer profile, and a missing profile is an error rather than blank data.
func (s *Service) resolveShipping(ctx context.Context, customerID string, in domain.ShippingDetails) (domain.ShippingDetails, error) {
	out := domain.ShippingDetails{
		RecipientName: strings.TrimSpace(in.RecipientName),
		Address:       strings.TrimSpace(in.Address),
		Phone:         strings.TrimSpace(in.Phone),
		Note:          strings.TrimSpace(in.Note),
		UseProfile:    in.UseProfile,
	}

	if out.UseProfile && (out.RecipientName == "" || out.Address == "" || out.Phone == "") {
		profile, err := s.customers.FindCustomer(ctx, customerID)
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return out, fmt.Errorf("%w: %s", ErrProfileNotFound, customerID)
		}
		if err != nil {
			return out, fmt.Errorf("failed to load customer profile: %w", err)
		}
		out.RecipientName = fallback(out.RecipientName, profile.Name)
		out.Address = fallback(out.Address, profile.Address)
		out.Phone = fallback(out.Phone, profile.Phone)
	}

	fields := map[string]string{}
	if out.RecipientName == "" {
		fields["recipient_name"] = "required"
	}
	if out.Address == "" {
		fields["address"] = "required"
	}
	if out.Phone == "" {
		fields["phone"] = "required"
	}
	if len(fields) > 0 {
		return out, &ValidationError{Fields: fields}
	}
	return out, nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
