package register

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Step identifies one modal in the registration sequence, in display order.
type Step int

const (
	StepName Step = iota
	StepGreeting
	StepPurpose
	StepLocation
	StepBirthDate
	StepGender
	StepEmail
	StepUsername
	StepPassword
	StepReview
)

// String returns the step's stable identifier, used in logs.
func (s Step) String() string {
	switch s {
	case StepName:
		return "name"
	case StepGreeting:
		return "greeting"
	case StepPurpose:
		return "purpose"
	case StepLocation:
		return "location"
	case StepBirthDate:
		return "birth_date"
	case StepGender:
		return "gender"
	case StepEmail:
		return "email"
	case StepUsername:
		return "username"
	case StepPassword:
		return "password"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Form accumulates everything captured across the steps. Location fields are
// populated according to the country branch: home-country signups carry a zip
// code, international signups carry city, state, and country.
type Form struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	UserName    string `json:"userName"`
	Password    string `json:"password"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	ZipCode     string `json:"zipCode,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Validator performs the remote availability checks for email and username.
type Validator interface {
	ValidateEmail(ctx context.Context, email string) (bool, error)
	ValidateUsername(ctx context.Context, userName string) (bool, error)
}

// Flow is the registration modal sequence. Each step's advance control stays
// disabled until the step's required input is satisfied; the flow enforces the
// same gating through CanAdvance and Advance.
type Flow struct {
	homeCountry string
	store       ValueStore
	validator   Validator

	step          Step
	form          Form
	countryChoice string // home country code or "OTHER"
	emailChecked  bool
	emailValid    bool
	userChecked   bool
	userValid     bool
	now           func() time.Time
}

// NewFlow starts a flow at the first step. homeCountry is the ISO code whose
// selection takes the postal-code branch; every other selection takes the
// international branch.
func NewFlow(homeCountry string, store ValueStore, validator Validator) *Flow {
	return &Flow{
		homeCountry: strings.ToUpper(homeCountry),
		store:       store,
		validator:   validator,
		step:        StepName,
		now:         time.Now,
	}
}

// Current returns the step the flow is on.
func (f *Flow) Current() Step {
	return f.step
}

// Form returns a snapshot of the captured fields.
func (f *Flow) Form() Form {
	return f.form
}

// SetName captures the name fields. The first name is also written through to
// the value store so later steps can personalize their copy.
func (f *Flow) SetName(first, last string) {
	f.form.FirstName = strings.TrimSpace(first)
	f.form.LastName = strings.TrimSpace(last)
	if f.form.FirstName != "" {
		f.store.Set(FirstNameKey, f.form.FirstName)
	}
}

// PersonalizeText substitutes the captured first name into step copy. Text
// without the placeholder passes through unchanged, as does text rendered
// before a name was captured.
func (f *Flow) PersonalizeText(text string) string {
	name, ok := f.store.Get(FirstNameKey)
	if !ok || name == "" {
		return text
	}
	return strings.ReplaceAll(text, "<firstName>", name)
}

// ChooseCountry records the location branch. Choosing the home country makes
// the zip code the required location field and clears the international
// fields; any other choice does the inverse.
func (f *Flow) ChooseCountry(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == f.homeCountry {
		f.countryChoice = f.homeCountry
		f.form.City, f.form.State, f.form.Country = "", "", ""
	} else {
		f.countryChoice = "OTHER"
		f.form.ZipCode = ""
	}
}

// HomeCountryChosen reports which location branch is active. False before any
// choice means neither sub-form is shown yet.
func (f *Flow) HomeCountryChosen() bool {
	return f.countryChoice == f.homeCountry && f.countryChoice != ""
}

// RequiredLocationFields names the location inputs the active branch requires.
func (f *Flow) RequiredLocationFields() []string {
	switch {
	case f.countryChoice == "":
		return nil
	case f.HomeCountryChosen():
		return []string{"zipCode"}
	default:
		return []string{"city", "state", "country"}
	}
}

func (f *Flow) SetZipCode(zip string)       { f.form.ZipCode = strings.TrimSpace(zip) }
func (f *Flow) SetCity(city string)         { f.form.City = strings.TrimSpace(city) }
func (f *Flow) SetState(state string)       { f.form.State = strings.TrimSpace(state) }
func (f *Flow) SetCountry(code string)      { f.form.Country = strings.ToUpper(strings.TrimSpace(code)) }
func (f *Flow) SetDateOfBirth(date string)  { f.form.DateOfBirth = strings.TrimSpace(date) }
func (f *Flow) SetGender(gender string)     { f.form.Gender = strings.TrimSpace(gender) }
func (f *Flow) SetPassword(password string) { f.form.Password = password }

// SetEmail records the email and invalidates any previous remote check.
func (f *Flow) SetEmail(email string) {
	email = strings.TrimSpace(email)
	if email != f.form.Email {
		f.emailChecked, f.emailValid = false, false
	}
	f.form.Email = email
}

// SetUserName records the username and invalidates any previous remote check.
func (f *Flow) SetUserName(userName string) {
	userName = strings.TrimSpace(userName)
	if userName != f.form.UserName {
		f.userChecked, f.userValid = false, false
	}
	f.form.UserName = userName
}

// CheckEmail runs the remote availability check, mirroring the blur handler
// on the email input. A transport failure leaves the previous result alone so
// the user can retry.
func (f *Flow) CheckEmail(ctx context.Context) (bool, error) {
	if f.form.Email == "" {
		return false, nil
	}
	ok, err := f.validator.ValidateEmail(ctx, f.form.Email)
	if err != nil {
		return false, fmt.Errorf("validate email: %w", err)
	}
	f.emailChecked, f.emailValid = true, ok
	return ok, nil
}

// CheckUsername runs the remote availability check for the username step.
func (f *Flow) CheckUsername(ctx context.Context) (bool, error) {
	if f.form.UserName == "" {
		return false, nil
	}
	ok, err := f.validator.ValidateUsername(ctx, f.form.UserName)
	if err != nil {
		return false, fmt.Errorf("validate username: %w", err)
	}
	f.userChecked, f.userValid = true, ok
	return ok, nil
}

// MaxBirthDate returns the latest acceptable date of birth: exactly 18 years
// ago measured at UTC+14, so no resident of any timezone can register a day
// early.
func (f *Flow) MaxBirthDate() string {
	now := f.now().UTC()
	limit := time.Date(now.Year()-18, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		Add(14 * time.Hour)
	return limit.Format("2006-01-02")
}

// CanAdvance reports whether the current step's required input is satisfied,
// with a reason when it is not.
func (f *Flow) CanAdvance() (bool, string) {
	switch f.step {
	case StepName:
		if f.form.FirstName == "" {
			return false, "first name is required"
		}
		if f.form.LastName == "" {
			return false, "last name is required"
		}
	case StepGreeting, StepPurpose, StepReview:
		// Informational steps gate on nothing.
	case StepLocation:
		if f.countryChoice == "" {
			return false, "select a country"
		}
		if f.HomeCountryChosen() {
			if f.form.ZipCode == "" {
				return false, "zip code is required"
			}
		} else {
			if f.form.City == "" || f.form.State == "" {
				return false, "city and state are required"
			}
			if !ValidCountryCode(f.form.Country) {
				return false, "choose your country"
			}
		}
	case StepBirthDate:
		if f.form.DateOfBirth == "" {
			return false, "date of birth is required"
		}
		dob, err := time.Parse("2006-01-02", f.form.DateOfBirth)
		if err != nil {
			return false, "date of birth is invalid"
		}
		latest, _ := time.Parse("2006-01-02", f.MaxBirthDate())
		if dob.After(latest) {
			return false, "you must be at least 18"
		}
	case StepGender:
		if f.form.Gender == "" {
			return false, "select an option"
		}
	case StepEmail:
		if f.form.Email == "" {
			return false, "email is required"
		}
		if !f.emailChecked || !f.emailValid {
			return false, "email must pass validation"
		}
	case StepUsername:
		if f.form.UserName == "" {
			return false, "username is required"
		}
		if !f.userChecked || !f.userValid {
			return false, "username must pass validation"
		}
	case StepPassword:
		if !CheckPassword(f.form.Password).Satisfied() {
			return false, "password does not meet requirements"
		}
	}
	return true, ""
}

// Advance moves to the next step, failing when the current step is not
// satisfied.
func (f *Flow) Advance() error {
	ok, reason := f.CanAdvance()
	if !ok {
		return fmt.Errorf("step %s: %s", f.step, reason)
	}
	if f.step < StepReview {
		f.step++
	}
	return nil
}

// Back moves to the previous step. The first step is a floor.
func (f *Flow) Back() {
	if f.step > StepName {
		f.step--
	}
}

// Payload assembles the final submission body. Only the active location
// branch's fields are present.
func (f *Flow) Payload() Form {
	payload := f.form
	if f.HomeCountryChosen() {
		payload.City, payload.State, payload.Country = "", "", ""
	} else {
		payload.ZipCode = ""
	}
	return payload
}

// Submit posts the aggregated form through the client. On success with the
// first-login flag set, the one-shot welcome flag is armed for the next page
// load. The flow must be on the review step.
func (f *Flow) Submit(ctx context.Context, client *Client) error {
	if f.step != StepReview {
		return fmt.Errorf("submit: flow is on step %s, not review", f.step)
	}
	reply, err := client.Register(ctx, f.Payload())
	if err != nil {
		return fmt.Errorf("submit registration: %w", err)
	}
	if !reply.Success {
		msg := reply.Message
		if msg == "" {
			msg = "registration failed"
		}
		return fmt.Errorf("submit registration: %s", msg)
	}
	if reply.FirstLogin {
		f.store.Set(WelcomeFlagKey, "true")
	}
	return nil
}
