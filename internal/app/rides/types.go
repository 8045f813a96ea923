package rides

import "time"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type CreateRideInput struct {
	Location  string
	StartDate time.Time
	EndDate   time.Time

	HasCar    bool
	WantsCar  bool
	WantsUber bool

	AdditionalComments *string
}

type UpdateRideInput struct {
	// Location, StartDate and EndDate are optional and cannot be null.
	Location  Optional[string]
	StartDate Optional[time.Time]
	EndDate   Optional[time.Time]

	HasCar    Optional[bool]
	WantsCar  Optional[bool]
	WantsUber Optional[bool]

	// AdditionalComments may be null to clear the comments.
	AdditionalComments Optional[string]
}

// ListFilter drives the open-ride listing. The three booleans are OR'd; at
// least one must be set. SearchWord optionally narrows by substring.
type ListFilter struct {
	HasCar    bool
	WantsCar  bool
	WantsUber bool

	SearchWord string
}
