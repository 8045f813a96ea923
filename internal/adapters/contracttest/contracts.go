// Package contracttest holds behavioral test suites that every adapter
// implementation of the outbound ports must pass. The memory and postgres
// adapters run the same suites.
package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wesrides/rides-api/internal/domain"
	ridestoreport "github.com/wesrides/rides-api/internal/ports/out/ridestore"
	userrepoport "github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type RideStoreFactory func(t *testing.T) (ridestoreport.Store, CleanupFunc)

var suiteNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(email string) userrepoport.User {
	return userrepoport.User{
		ID:           domain.UserID(uuid.NewString()),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    suiteNow,
		UpdatedAt:    suiteNow,
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	u := newUser("ada@wesleyan.edu")
	phone := "+1 860 555 0100"
	u.PhoneNumber = &phone
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != u.Email || got.PasswordHash != "x" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.PhoneNumber == nil || *got.PhoneNumber != phone {
		t.Fatalf("phone=%v, want %q", got.PhoneNumber, phone)
	}

	// Email lookup is case-insensitive.
	if _, err := repo.GetByEmail(ctx, "ADA@Wesleyan.EDU"); err != nil {
		t.Fatalf("GetByEmail mixed case: %v", err)
	}

	// Email uniqueness is case-insensitive too.
	dup := newUser("Ada@wesleyan.edu")
	if err := repo.Create(ctx, dup); !errors.Is(err, userrepoport.ErrEmailAlreadyExists) {
		t.Fatalf("Create duplicate email err=%v, want ErrEmailAlreadyExists", err)
	}

	other := newUser("grace@wesleyan.edu")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	// Update keeps unrelated fields and enforces email uniqueness.
	got.Name = "Ada Lovelace"
	got.PhoneNumber = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Name != "Ada Lovelace" || got.PhoneNumber != nil {
		t.Fatalf("update not applied: %+v", got)
	}

	got.Email = "GRACE@wesleyan.edu"
	if err := repo.Update(ctx, got); !errors.Is(err, userrepoport.ErrEmailAlreadyExists) {
		t.Fatalf("Update to taken email err=%v, want ErrEmailAlreadyExists", err)
	}

	if _, err := repo.GetByID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@wesleyan.edu"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail missing err=%v, want ErrNotFound", err)
	}
	missing := newUser("missing@wesleyan.edu")
	if err := repo.Update(ctx, missing); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Update missing err=%v, want ErrNotFound", err)
	}
}

// RunRideStore exercises the ride aggregate store. The user repo factory is
// needed because rides reference their owner.
func RunRideStore(t *testing.T, newStore RideStoreFactory, newUsers UserRepoFactory) {
	t.Helper()

	users, cleanup := newUsers(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	ctx := context.Background()
	seedUser := func(t *testing.T, email string) domain.UserID {
		t.Helper()
		u := newUser(email)
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return u.ID
	}

	ownerA := seedUser(t, "owner.a@wesleyan.edu")
	ownerB := seedUser(t, "owner.b@wesleyan.edu")
	rider := seedUser(t, "rider@wesleyan.edu")

	newRide := func(owner domain.UserID, location string, start time.Time) ridestoreport.Ride {
		return ridestoreport.Ride{
			ID:        domain.RideID(uuid.NewString()),
			OwnerID:   owner,
			Location:  location,
			StartDate: start,
			EndDate:   start,
			WantsUber: true,
			Status:    ridestoreport.StatusPending,
			CreatedAt: suiteNow,
			UpdatedAt: suiteNow,
		}
	}
	day := func(n int) time.Time { return suiteNow.AddDate(0, 0, n) }

	t.Run("create and get", func(t *testing.T) {
		comments := "meeting at Exley"
		r := newRide(ownerA, "Bradley Airport", day(1))
		r.AdditionalComments = &comments
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		got, err := store.GetRide(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetRide: %v", err)
		}
		if got.OwnerID != ownerA || got.Location != "Bradley Airport" || !got.StartDate.Equal(day(1)) {
			t.Fatalf("unexpected ride: %+v", got)
		}
		if got.AdditionalComments == nil || *got.AdditionalComments != comments {
			t.Fatalf("comments=%v, want %q", got.AdditionalComments, comments)
		}
		if got.Status != ridestoreport.StatusPending {
			t.Fatalf("status=%s, want pending", got.Status)
		}
	})

	t.Run("duplicate open ride", func(t *testing.T) {
		r := newRide(ownerA, "Union Station", day(2))
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		// Case differences in location do not help.
		dup := newRide(ownerA, "union station", day(2))
		if err := store.CreateRide(ctx, dup); !errors.Is(err, ridestoreport.ErrDuplicateRide) {
			t.Fatalf("CreateRide dup err=%v, want ErrDuplicateRide", err)
		}

		// A different owner is free to post the same ride.
		if err := store.CreateRide(ctx, newRide(ownerB, "Union Station", day(2))); err != nil {
			t.Fatalf("CreateRide other owner: %v", err)
		}

		// A closed ride no longer blocks.
		err := store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			cur, err := tx.Ride(ctx)
			if err != nil {
				return err
			}
			cur.Status = ridestoreport.StatusCompleted
			return tx.SaveRide(ctx, cur)
		})
		if err != nil {
			t.Fatalf("close ride: %v", err)
		}
		if err := store.CreateRide(ctx, newRide(ownerA, "Union Station", day(2))); err != nil {
			t.Fatalf("CreateRide after close: %v", err)
		}
	})

	t.Run("list by owner newest start first", func(t *testing.T) {
		owner := seedUser(t, "lister@wesleyan.edu")
		early := newRide(owner, "Hartford", day(3))
		late := newRide(owner, "Boston", day(9))
		for _, r := range []ridestoreport.Ride{early, late} {
			if err := store.CreateRide(ctx, r); err != nil {
				t.Fatalf("CreateRide: %v", err)
			}
		}

		got, err := store.ListRidesByOwner(ctx, owner)
		if err != nil {
			t.Fatalf("ListRidesByOwner: %v", err)
		}
		if len(got) != 2 || got[0].ID != late.ID || got[1].ID != early.ID {
			t.Fatalf("got %+v, want [%s %s]", got, late.ID, early.ID)
		}
	})

	t.Run("search open rides", func(t *testing.T) {
		owner := seedUser(t, "searcher@wesleyan.edu")

		uber := newRide(owner, "Providence", day(4))
		if err := store.CreateRide(ctx, uber); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		car := newRide(owner, "New Haven", day(4))
		car.WantsUber = false
		car.HasCar = true
		if err := store.CreateRide(ctx, car); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		closed := newRide(owner, "Providence", day(5))
		closed.Status = ridestoreport.StatusConfirmed
		if err := store.CreateRide(ctx, closed); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		got, err := store.SearchOpenRides(ctx, ridestoreport.SearchQuery{HasCar: true, ExcludeOwner: rider, Keyword: "new haven"})
		if err != nil {
			t.Fatalf("SearchOpenRides: %v", err)
		}
		if len(got) != 1 || got[0].ID != car.ID {
			t.Fatalf("got %+v, want only %s", got, car.ID)
		}

		// The owner's own rides are excluded.
		got, err = store.SearchOpenRides(ctx, ridestoreport.SearchQuery{HasCar: true, ExcludeOwner: owner, Keyword: "new haven"})
		if err != nil {
			t.Fatalf("SearchOpenRides: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("got %+v, want none", got)
		}

		// Closed rides never appear.
		got, err = store.SearchOpenRides(ctx, ridestoreport.SearchQuery{WantsUber: true, ExcludeOwner: rider, Keyword: "providence"})
		if err != nil {
			t.Fatalf("SearchOpenRides: %v", err)
		}
		if len(got) != 1 || got[0].ID != uber.ID {
			t.Fatalf("got %+v, want only the open ride %s", got, uber.ID)
		}
	})

	t.Run("search orders exact location first", func(t *testing.T) {
		owner := seedUser(t, "orderer@wesleyan.edu")

		comments := "can drop off near Danbury on the way"
		mention := newRide(owner, "Stamford", day(6))
		mention.AdditionalComments = &comments
		exact := newRide(owner, "Danbury", day(7))
		for _, r := range []ridestoreport.Ride{mention, exact} {
			if err := store.CreateRide(ctx, r); err != nil {
				t.Fatalf("CreateRide: %v", err)
			}
		}

		got, err := store.SearchOpenRides(ctx, ridestoreport.SearchQuery{WantsUber: true, ExcludeOwner: rider, Keyword: "DANBURY"})
		if err != nil {
			t.Fatalf("SearchOpenRides: %v", err)
		}
		if len(got) != 2 || got[0].ID != exact.ID || got[1].ID != mention.ID {
			t.Fatalf("got %+v, want exact location match %s first", got, exact.ID)
		}
	})

	t.Run("interest lifecycle", func(t *testing.T) {
		r := newRide(ownerB, "Springfield", day(8))
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		first := domain.RideInterestID(uuid.NewString())
		second := domain.RideInterestID(uuid.NewString())
		err := store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			for i, id := range []domain.RideInterestID{first, second} {
				err := tx.CreateInterest(ctx, ridestoreport.Interest{
					ID:        id,
					RideID:    r.ID,
					UserID:    rider,
					Status:    ridestoreport.InterestAwaitingConfirmation,
					CreatedAt: suiteNow.Add(time.Duration(i) * time.Minute),
					UpdatedAt: suiteNow.Add(time.Duration(i) * time.Minute),
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("seed interests: %v", err)
		}

		got, err := store.ListInterestsByRide(ctx, r.ID)
		if err != nil {
			t.Fatalf("ListInterestsByRide: %v", err)
		}
		if len(got) != 2 || got[0].ID != first || got[1].ID != second {
			t.Fatalf("got %+v, want creation order [%s %s]", got, first, second)
		}

		byUser, err := store.ListInterestsByUser(ctx, rider)
		if err != nil {
			t.Fatalf("ListInterestsByUser: %v", err)
		}
		var mine int
		for _, it := range byUser {
			if it.RideID == r.ID {
				mine++
			}
		}
		if mine != 2 {
			t.Fatalf("got %d interests for rider on %s, want 2", mine, r.ID)
		}

		err = store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			its, err := tx.Interests(ctx)
			if err != nil {
				return err
			}
			if len(its) != 2 {
				t.Fatalf("tx sees %d interests, want 2", len(its))
			}
			it := its[0]
			it.Status = ridestoreport.InterestAccepted
			if err := tx.SaveInterest(ctx, it); err != nil {
				return err
			}
			return tx.DeleteInterest(ctx, second)
		})
		if err != nil {
			t.Fatalf("mutate interests: %v", err)
		}

		it, err := store.GetInterest(ctx, first)
		if err != nil {
			t.Fatalf("GetInterest: %v", err)
		}
		if it.Status != ridestoreport.InterestAccepted {
			t.Fatalf("status=%s, want accepted", it.Status)
		}
		if _, err := store.GetInterest(ctx, second); !errors.Is(err, ridestoreport.ErrInterestNotFound) {
			t.Fatalf("GetInterest deleted err=%v, want ErrInterestNotFound", err)
		}
	})

	t.Run("transact rolls back on error", func(t *testing.T) {
		r := newRide(ownerB, "Worcester", day(10))
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}

		boom := errors.New("boom")
		interestID := domain.RideInterestID(uuid.NewString())
		err := store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			cur, err := tx.Ride(ctx)
			if err != nil {
				return err
			}
			cur.Status = ridestoreport.StatusConfirmed
			if err := tx.SaveRide(ctx, cur); err != nil {
				return err
			}
			err = tx.CreateInterest(ctx, ridestoreport.Interest{
				ID:        interestID,
				RideID:    r.ID,
				UserID:    rider,
				Status:    ridestoreport.InterestAccepted,
				CreatedAt: suiteNow,
				UpdatedAt: suiteNow,
			})
			if err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Transact err=%v, want the callback error", err)
		}

		got, err := store.GetRide(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetRide: %v", err)
		}
		if got.Status != ridestoreport.StatusPending {
			t.Fatalf("status=%s, want rollback to pending", got.Status)
		}
		if _, err := store.GetInterest(ctx, interestID); !errors.Is(err, ridestoreport.ErrInterestNotFound) {
			t.Fatalf("GetInterest err=%v, want rollback", err)
		}
	})

	t.Run("transact on missing ride", func(t *testing.T) {
		err := store.Transact(ctx, domain.RideID(uuid.NewString()), func(ctx context.Context, tx ridestoreport.Tx) error {
			t.Fatal("callback ran for a missing ride")
			return nil
		})
		if !errors.Is(err, ridestoreport.ErrNotFound) {
			t.Fatalf("Transact err=%v, want ErrNotFound", err)
		}
	})

	t.Run("delete ride cascades", func(t *testing.T) {
		r := newRide(ownerB, "Albany", day(11))
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide: %v", err)
		}
		interestID := domain.RideInterestID(uuid.NewString())
		err := store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			return tx.CreateInterest(ctx, ridestoreport.Interest{
				ID:        interestID,
				RideID:    r.ID,
				UserID:    rider,
				Status:    ridestoreport.InterestAwaitingConfirmation,
				CreatedAt: suiteNow,
				UpdatedAt: suiteNow,
			})
		})
		if err != nil {
			t.Fatalf("seed interest: %v", err)
		}

		err = store.Transact(ctx, r.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			return tx.DeleteRide(ctx)
		})
		if err != nil {
			t.Fatalf("delete ride: %v", err)
		}
		if _, err := store.GetRide(ctx, r.ID); !errors.Is(err, ridestoreport.ErrNotFound) {
			t.Fatalf("GetRide err=%v, want ErrNotFound", err)
		}
		if _, err := store.GetInterest(ctx, interestID); !errors.Is(err, ridestoreport.ErrInterestNotFound) {
			t.Fatalf("GetInterest err=%v, want cascade delete", err)
		}
	})

	t.Run("duplicate check inside transaction", func(t *testing.T) {
		owner := seedUser(t, "dupcheck@wesleyan.edu")
		a := newRide(owner, "Mystic", day(12))
		b := newRide(owner, "Norwich", day(12))
		for _, r := range []ridestoreport.Ride{a, b} {
			if err := store.CreateRide(ctx, r); err != nil {
				t.Fatalf("CreateRide: %v", err)
			}
		}

		err := store.Transact(ctx, b.ID, func(ctx context.Context, tx ridestoreport.Tx) error {
			dup, err := tx.HasDuplicate(ctx, "MYSTIC", day(12))
			if err != nil {
				return err
			}
			if !dup {
				t.Fatal("expected duplicate against the owner's other open ride")
			}
			clear, err := tx.HasDuplicate(ctx, "Norwich", day(12))
			if err != nil {
				return err
			}
			if clear {
				t.Fatal("the locked ride itself must not count as a duplicate")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Transact: %v", err)
		}
	})
}
