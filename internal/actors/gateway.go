package actors

import (
	"context"
	"errors"
	"fmt"

	"financing-portal/internal/common/auth"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
	"financing-portal/internal/store"
)

// Gateway answers "who is the customer" for an application.
type Gateway interface {
	// ResolveCustomerUserID returns "" with a nil error when nobody matches.
	ResolveCustomerUserID(ctx context.Context, app *models.Application) (string, error)
}

// UserLookup is the identity-provider side of the directory. Satisfied by
// *auth.KeycloakClient.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	GetUser(ctx context.Context, userID string) (*auth.User, error)
}

// CustomerResolver matches an application to a customer account by stored
// id, then by case-insensitive contact email against the profile table and
// finally against the identity provider. A match found by email is written
// back onto the application once.
type CustomerResolver struct {
	store  store.EntityStore
	users  UserLookup
	logger logger.Logger
}

func NewCustomerResolver(s store.EntityStore, users UserLookup, log logger.Logger) *CustomerResolver {
	return &CustomerResolver{
		store:  s,
		users:  users,
		logger: log.WithFields(map[string]interface{}{"component": "actors"}),
	}
}

func (r *CustomerResolver) ResolveCustomerUserID(ctx context.Context, app *models.Application) (string, error) {
	if app.CustomerID != "" {
		return app.CustomerID, nil
	}
	if app.ContactEmail == "" {
		return "", nil
	}

	userID, err := r.lookupByEmail(ctx, app.ContactEmail)
	if err != nil || userID == "" {
		return "", err
	}

	// cache-fill only; no transition, no notification
	_, err = r.store.SetIfUnset(ctx, store.TableApplications, app.ID, "customer_id", userID)
	switch {
	case err == nil:
		r.logger.Info("customer resolved by email", map[string]interface{}{
			"applicationId": app.ID,
			"customerId":    userID,
		})
	case errors.Is(err, store.ErrConflict):
		current, getErr := r.store.Get(ctx, store.TableApplications, app.ID)
		if getErr != nil {
			return "", fmt.Errorf("reload application: %w", getErr)
		}
		if stored := current.String("customer_id"); stored != "" {
			userID = stored
		}
	default:
		r.logger.Warn("failed to persist resolved customer", map[string]interface{}{
			"applicationId": app.ID,
			"customerId":    userID,
			"error":         err,
		})
	}
	app.CustomerID = userID
	return userID, nil
}

func (r *CustomerResolver) lookupByEmail(ctx context.Context, email string) (string, error) {
	profiles, err := store.LoadAll[models.Profile](ctx, r.store, store.TableProfiles,
		store.Filter{store.EqFold("email", email), store.Eq("role", models.RoleCustomer)})
	if err != nil {
		return "", fmt.Errorf("profile lookup: %w", err)
	}
	if len(profiles) > 0 {
		return profiles[0].ID, nil
	}

	if r.users == nil {
		return "", nil
	}
	user, err := r.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("directory lookup: %w", err)
	}
	if user == nil {
		return "", nil
	}

	// The account exists in the identity provider but has no profile row
	// yet; the profile id is the identity provider's user id.
	if _, err := r.store.Get(ctx, store.TableProfiles, user.ID); errors.Is(err, store.ErrNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("profile lookup: %w", err)
	}
	return user.ID, nil
}
