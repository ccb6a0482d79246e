package domain

// Profile carries the user attributes consumed by the horoscope
// compatibility prompt.
type Profile struct {
	ID           int64
	UserName     string
	Dob          string
	PlaceOfBirth string
	PhotoURL     string
}
