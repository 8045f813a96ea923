package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	memclock "github.com/wesrides/rides-api/internal/adapters/memory/clock"
	memridestore "github.com/wesrides/rides-api/internal/adapters/memory/ridestore"
	memuserrepo "github.com/wesrides/rides-api/internal/adapters/memory/userrepo"
	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/ports/out/ridestore"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *memridestore.Store
	users *memuserrepo.Repo
	clk   *memclock.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := memclock.NewManualClock(testNow)
	store := memridestore.NewStore()
	users := memuserrepo.NewRepo()
	svc := NewService(store, users, clk)

	var n int
	svc.SetNewRideIDForTest(func() domain.RideID {
		n++
		return domain.RideID(fmt.Sprintf("ride-%d", n))
	})
	return &fixture{svc: svc, store: store, users: users, clk: clk}
}

func (f *fixture) addUser(t *testing.T, id domain.UserID, name string) {
	t.Helper()
	err := f.users.Create(context.Background(), userrepo.User{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(name) + "@wesleyan.edu",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func validCreateInput() CreateRideInput {
	return CreateRideInput{
		Location:  "Bradley Airport",
		StartDate: testNow.AddDate(0, 0, 1),
		EndDate:   testNow.AddDate(0, 0, 1),
		WantsUber: true,
	}
}

func (f *fixture) createRide(t *testing.T, owner domain.UserID, in CreateRideInput) domain.RideID {
	t.Helper()
	id, err := f.svc.CreateRide(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("CreateRide err=%v", err)
	}
	return id
}

func (f *fixture) addInterest(t *testing.T, id domain.RideInterestID, rideID domain.RideID, user domain.UserID, status ridestore.InterestStatus) {
	t.Helper()
	err := f.store.Transact(context.Background(), rideID, func(ctx context.Context, tx ridestore.Tx) error {
		return tx.CreateInterest(ctx, ridestore.Interest{
			ID:        id,
			RideID:    rideID,
			UserID:    user,
			Status:    status,
			CreatedAt: f.clk.Now(),
			UpdatedAt: f.clk.Now(),
		})
	})
	if err != nil {
		t.Fatalf("seed interest %s: %v", id, err)
	}
}

func (f *fixture) setRideStatus(t *testing.T, rideID domain.RideID, status ridestore.Status) {
	t.Helper()
	err := f.store.Transact(context.Background(), rideID, func(ctx context.Context, tx ridestore.Tx) error {
		r, err := tx.Ride(ctx)
		if err != nil {
			return err
		}
		r.Status = status
		return tx.SaveRide(ctx, r)
	})
	if err != nil {
		t.Fatalf("set ride status: %v", err)
	}
}

func assertAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("err=%v, want *rides.Error %d %s", err, status, code)
	}
	if appErr.Status != status || appErr.Code != code {
		t.Fatalf("got %d %s (%s), want %d %s", appErr.Status, appErr.Code, appErr.Message, status, code)
	}
}

func TestCreateRide_NormalizesLocation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := validCreateInput()
	in.Location = "  Bradley   Airport "
	id := f.createRide(t, "owner-1", in)

	r, err := f.store.GetRide(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRide err=%v", err)
	}
	if r.Location != "Bradley Airport" {
		t.Fatalf("location=%q, want normalized", r.Location)
	}
	if r.Status != ridestore.StatusPending {
		t.Fatalf("status=%s, want pending", r.Status)
	}
}

func TestCreateRide_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*CreateRideInput)
	}{
		{"empty location", func(in *CreateRideInput) { in.Location = "   " }},
		{"location too long", func(in *CreateRideInput) { in.Location = strings.Repeat("a", 51) }},
		{"location bad characters", func(in *CreateRideInput) { in.Location = "JFK Airport!" }},
		{"start in the past", func(in *CreateRideInput) { in.StartDate = testNow.AddDate(0, 0, -2) }},
		{"end before start", func(in *CreateRideInput) { in.EndDate = in.StartDate.AddDate(0, 0, -1) }},
		{"all filters false", func(in *CreateRideInput) { in.WantsUber = false }},
		{"comments too long", func(in *CreateRideInput) {
			v := strings.Repeat("x", 1501)
			in.AdditionalComments = &v
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			in := validCreateInput()
			tc.mutate(&in)

			_, err := f.svc.CreateRide(context.Background(), "owner-1", in)
			assertAppError(t, err, 400, "VALIDATION_ERROR")
		})
	}
}

func TestCreateRide_StartTodayAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := validCreateInput()
	in.StartDate = testNow.Truncate(24 * time.Hour)
	in.EndDate = in.StartDate
	f.createRide(t, "owner-1", in)
}

func TestCreateRide_Duplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createRide(t, "owner-1", validCreateInput())

	// Same owner, same normalized location and start date.
	in := validCreateInput()
	in.Location = " bradley   airport "
	_, err := f.svc.CreateRide(context.Background(), "owner-1", in)
	assertAppError(t, err, 409, "RIDE_DUPLICATE")

	// A different owner may post the identical ride.
	f.createRide(t, "owner-2", validCreateInput())
}

func TestCreateRide_DuplicateIgnoresClosedRides(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())
	f.setRideStatus(t, id, ridestore.StatusCompleted)

	f.createRide(t, "owner-1", validCreateInput())
}

func TestUpdateRide_OwnerOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())

	in := UpdateRideInput{Location: Some("New Haven")}
	err := f.svc.UpdateRide(context.Background(), "other-user", id, in)
	assertAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestUpdateRide_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.svc.UpdateRide(context.Background(), "owner-1", "missing", UpdateRideInput{Location: Some("New Haven")})
	assertAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestUpdateRide_ClosedRide(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())
	f.setRideStatus(t, id, ridestore.StatusConfirmed)

	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{Location: Some("New Haven")})
	assertAppError(t, err, 409, "RIDE_NOT_EDITABLE")
}

func TestUpdateRide_PartialUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	comments := "Leaving from Exley"
	in := validCreateInput()
	in.AdditionalComments = &comments
	id := f.createRide(t, "owner-1", in)

	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{
		Location: Some("Union Station"),
		HasCar:   Some(true),
	})
	if err != nil {
		t.Fatalf("UpdateRide err=%v", err)
	}

	r, err := f.store.GetRide(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRide err=%v", err)
	}
	if r.Location != "Union Station" {
		t.Fatalf("location=%q, want Union Station", r.Location)
	}
	if !r.HasCar || !r.WantsUber {
		t.Fatalf("filters changed unexpectedly: %+v", r)
	}
	if r.AdditionalComments == nil || *r.AdditionalComments != comments {
		t.Fatalf("comments changed unexpectedly: %v", r.AdditionalComments)
	}
}

func TestUpdateRide_NullClearsComments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	comments := "text"
	in := validCreateInput()
	in.AdditionalComments = &comments
	id := f.createRide(t, "owner-1", in)

	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{
		AdditionalComments: Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdateRide err=%v", err)
	}
	r, _ := f.store.GetRide(context.Background(), id)
	if r.AdditionalComments != nil {
		t.Fatalf("comments=%v, want cleared", r.AdditionalComments)
	}
}

func TestUpdateRide_AllFiltersFalse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())

	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{WantsUber: Some(false)})
	assertAppError(t, err, 400, "VALIDATION_ERROR")
}

func TestUpdateRide_WouldDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createRide(t, "owner-1", validCreateInput())

	in := validCreateInput()
	in.Location = "Union Station"
	id2 := f.createRide(t, "owner-1", in)

	err := f.svc.UpdateRide(context.Background(), "owner-1", id2, UpdateRideInput{
		Location: Some("Bradley Airport"),
	})
	assertAppError(t, err, 409, "RIDE_DUPLICATE")
}

func TestUpdateRide_PastStartDateOnlyBlocksDateEdits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())

	// The start date passes while the ride is still open.
	f.clk.Advance(72 * time.Hour)

	comments := "meet at the Usdan loop"
	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{
		AdditionalComments: Some(comments),
		HasCar:             Some(true),
	})
	if err != nil {
		t.Fatalf("UpdateRide err=%v, want fields without dates to stay editable", err)
	}

	r, err := f.store.GetRide(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRide err=%v", err)
	}
	if r.AdditionalComments == nil || *r.AdditionalComments != comments {
		t.Fatalf("comments=%v, want %q", r.AdditionalComments, comments)
	}

	// Supplying a new past start date is still rejected.
	err = f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{
		StartDate: Some(testNow.AddDate(0, 0, 1)),
	})
	assertAppError(t, err, 400, "VALIDATION_ERROR")
}

func TestUpdateRide_EndBeforeMergedStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := validCreateInput()
	in.EndDate = testNow.AddDate(0, 0, 3)
	id := f.createRide(t, "owner-1", in)

	err := f.svc.UpdateRide(context.Background(), "owner-1", id, UpdateRideInput{
		EndDate: Some(testNow),
	})
	assertAppError(t, err, 400, "VALIDATION_ERROR")
}

func TestDeleteRide_Cascades(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())
	f.addInterest(t, "int-1", id, "user-2", ridestore.InterestAwaitingConfirmation)

	if err := f.svc.DeleteRide(context.Background(), "owner-1", id); err != nil {
		t.Fatalf("DeleteRide err=%v", err)
	}
	if _, err := f.store.GetRide(context.Background(), id); !errors.Is(err, ridestore.ErrNotFound) {
		t.Fatalf("GetRide err=%v, want ErrNotFound", err)
	}
	if _, err := f.store.GetInterest(context.Background(), "int-1"); !errors.Is(err, ridestore.ErrInterestNotFound) {
		t.Fatalf("GetInterest err=%v, want ErrInterestNotFound", err)
	}
}

func TestDeleteRide_OwnerOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())

	err := f.svc.DeleteRide(context.Background(), "other-user", id)
	assertAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestDeleteRide_ConfirmedRefused(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())
	f.setRideStatus(t, id, ridestore.StatusConfirmed)

	err := f.svc.DeleteRide(context.Background(), "owner-1", id)
	assertAppError(t, err, 409, "RIDE_NOT_DELETABLE")
}

func TestDeleteRide_FailedAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createRide(t, "owner-1", validCreateInput())
	f.setRideStatus(t, id, ridestore.StatusFailed)

	if err := f.svc.DeleteRide(context.Background(), "owner-1", id); err != nil {
		t.Fatalf("DeleteRide err=%v", err)
	}
}

func TestGetRideDetails_OwnerSeesInterests(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "user-2", "Grace")
	id := f.createRide(t, "owner-1", validCreateInput())
	f.addInterest(t, "int-1", id, "user-2", ridestore.InterestAwaitingConfirmation)

	d, err := f.svc.GetRideDetails(context.Background(), "owner-1", id)
	if err != nil {
		t.Fatalf("GetRideDetails err=%v", err)
	}
	if !d.ViewerIsOwner {
		t.Fatalf("ViewerIsOwner=false, want true")
	}
	if len(d.Interests) != 1 || d.Interests[0].UserName != "Grace" {
		t.Fatalf("interests=%+v, want Grace's entry", d.Interests)
	}
	if d.Owner != nil {
		t.Fatalf("owner contact leaked into owner view")
	}
}

func TestGetRideDetails_NonOwnerSeesOwnerContact(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "owner-1", "Ada")
	id := f.createRide(t, "owner-1", validCreateInput())
	f.addInterest(t, "int-1", id, "user-2", ridestore.InterestAwaitingConfirmation)

	d, err := f.svc.GetRideDetails(context.Background(), "user-2", id)
	if err != nil {
		t.Fatalf("GetRideDetails err=%v", err)
	}
	if d.ViewerIsOwner {
		t.Fatalf("ViewerIsOwner=true for a non-owner")
	}
	if d.Owner == nil || d.Owner.Name != "Ada" {
		t.Fatalf("owner=%+v, want Ada's contact info", d.Owner)
	}
	if d.MyInterest == nil || d.MyInterest.ID != "int-1" {
		t.Fatalf("my_interest=%+v, want int-1", d.MyInterest)
	}
	if len(d.Interests) != 0 {
		t.Fatalf("interest list leaked to a non-owner")
	}
}

func TestGetRideDetails_ClosedRideOnlyForAcceptedRequester(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "owner-1", "Ada")
	id := f.createRide(t, "owner-1", validCreateInput())
	f.addInterest(t, "int-1", id, "user-2", ridestore.InterestAccepted)
	f.addInterest(t, "int-2", id, "user-3", ridestore.InterestRejected)
	f.setRideStatus(t, id, ridestore.StatusConfirmed)

	if _, err := f.svc.GetRideDetails(context.Background(), "user-2", id); err != nil {
		t.Fatalf("accepted requester refused: %v", err)
	}

	_, err := f.svc.GetRideDetails(context.Background(), "user-3", id)
	assertAppError(t, err, 403, "RIDE_ACCESS_DENIED")

	_, err = f.svc.GetRideDetails(context.Background(), "user-4", id)
	assertAppError(t, err, 403, "RIDE_ACCESS_DENIED")
}

// interestListingFailsStore simulates a store failure on the interest lookup
// used to resolve the viewer's own interest.
type interestListingFailsStore struct {
	*memridestore.Store
	err error
}

func (s *interestListingFailsStore) ListInterestsByRide(ctx context.Context, rideID domain.RideID) ([]ridestore.Interest, error) {
	return nil, s.err
}

func TestGetRideDetails_InterestLookupFailurePropagates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "owner-1", "Ada")
	id := f.createRide(t, "owner-1", validCreateInput())
	f.setRideStatus(t, id, ridestore.StatusConfirmed)

	boom := errors.New("store down")
	svc := NewService(&interestListingFailsStore{Store: f.store, err: boom}, f.users, f.clk)

	_, err := svc.GetRideDetails(context.Background(), "user-2", id)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want the store failure, not an access error", err)
	}
}

func TestGetRideDetails_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.GetRideDetails(context.Background(), "user-1", "missing")
	assertAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestListOpenRides_RequiresAFilter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.ListOpenRides(context.Background(), "user-1", ListFilter{})
	assertAppError(t, err, 400, "VALIDATION_ERROR")
}

func TestListOpenRides_FiltersAndExcludesCaller(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	uber := validCreateInput()
	uberID := f.createRide(t, "owner-1", uber)

	car := validCreateInput()
	car.Location = "Union Station"
	car.WantsUber = false
	car.HasCar = true
	carID := f.createRide(t, "owner-2", car)

	// WantsUber filter: only the uber ride, and never the caller's own.
	got, err := f.svc.ListOpenRides(context.Background(), "user-3", ListFilter{WantsUber: true})
	if err != nil {
		t.Fatalf("ListOpenRides err=%v", err)
	}
	if len(got) != 1 || got[0].ID != uberID {
		t.Fatalf("got=%+v, want only %s", got, uberID)
	}

	if got, _ = f.svc.ListOpenRides(context.Background(), "owner-1", ListFilter{WantsUber: true}); len(got) != 0 {
		t.Fatalf("caller's own ride included: %+v", got)
	}

	// Filters OR together.
	got, err = f.svc.ListOpenRides(context.Background(), "user-3", ListFilter{WantsUber: true, HasCar: true})
	if err != nil {
		t.Fatalf("ListOpenRides err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rides, want both %s and %s", len(got), uberID, carID)
	}
}

func TestListOpenRides_KeywordExactLocationFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	comments := "pickup near Union Station"
	a := validCreateInput()
	a.AdditionalComments = &comments
	aID := f.createRide(t, "owner-1", a)

	b := validCreateInput()
	b.Location = "Union Station"
	bID := f.createRide(t, "owner-2", b)

	got, err := f.svc.ListOpenRides(context.Background(), "user-3", ListFilter{WantsUber: true, SearchWord: "union station"})
	if err != nil {
		t.Fatalf("ListOpenRides err=%v", err)
	}
	if len(got) != 2 || got[0].ID != bID || got[1].ID != aID {
		t.Fatalf("got=%+v, want exact-location match %s first", got, bID)
	}
}

func TestListMyRides_NewestStartFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	early := validCreateInput()
	earlyID := f.createRide(t, "owner-1", early)

	late := validCreateInput()
	late.Location = "Union Station"
	late.StartDate = testNow.AddDate(0, 0, 7)
	late.EndDate = late.StartDate
	lateID := f.createRide(t, "owner-1", late)

	f.createRide(t, "owner-2", validCreateInput())

	got, err := f.svc.ListMyRides(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ListMyRides err=%v", err)
	}
	if len(got) != 2 || got[0].ID != lateID || got[1].ID != earlyID {
		t.Fatalf("got=%+v, want [%s %s]", got, lateID, earlyID)
	}
}
