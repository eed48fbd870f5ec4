// ABOUTME: Registration form payload and its validation rules
// ABOUTME: Mirrors the public sign-up form field names, including multi-value answers

package enroll

import (
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/oneblock/oneblock-gateway/internal/store"
	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

// Affirmative answers used by the sign-up form's yes/no questions.
const (
	answerYes     = "是"
	answerWilling = "愿意"
)

// MultiValue accepts either a JSON string or an array of strings.
// Arrays are joined with commas.
type MultiValue string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MultiValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = MultiValue(strings.Join(list, ","))
		return nil
	}

	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != nil {
		*m = MultiValue(*s)
	}
	return nil
}

// Profile is the self-service registration form.
type Profile struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Email   string `json:"email"`

	WechatID     string     `json:"wechatId"`
	Phone        string     `json:"phone"`
	Gender       string     `json:"gender"`
	AgeGroup     string     `json:"ageGroup"`
	Education    string     `json:"education"`
	University   string     `json:"university"`
	Major        string     `json:"major"`
	City         string     `json:"city"`
	Status       MultiValue `json:"status"`
	Languages    MultiValue `json:"languages"`
	Experience   string     `json:"experience"`
	Source       string     `json:"source"`
	Participated string     `json:"participated"`
	DailyTime    string     `json:"dailyTime"`
	Interests    string     `json:"interests"`
	Platforms    string     `json:"platforms"`
	Hackathon    string     `json:"hackathon"`
	Leadership   string     `json:"leadership"`
	PrivateMsg   string     `json:"privateMsg"`
	Inviter      string     `json:"inviter"`
}

// Validate runs the required-field and format rules.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Address, validation.Required, validation.By(validAddress)),
		validation.Field(&p.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&p.Phone, validation.Length(0, 32)),
	)
}

func validAddress(value interface{}) error {
	s, _ := value.(string)
	if _, err := wallet.NormalizeAddress(s); err != nil {
		return errors.New("must be a valid wallet address")
	}
	return nil
}

// details maps the optional survey answers onto the stored document.
func (p Profile) details() store.ProfileDetails {
	return store.ProfileDetails{
		Gender:              p.Gender,
		AgeGroup:            p.AgeGroup,
		Education:           p.Education,
		University:          p.University,
		Major:               p.Major,
		City:                p.City,
		Roles:               string(p.Status),
		Languages:           string(p.Languages),
		Experience:          p.Experience,
		Source:              p.Source,
		HasWeb3Experience:   p.Participated == answerYes,
		StudyTime:           p.DailyTime,
		Interests:           p.Interests,
		Platforms:           p.Platforms,
		WillingToHackathon:  p.Hackathon == answerWilling,
		WillingToLead:       p.Leadership == answerYes,
		WantsPrivateService: p.PrivateMsg == answerYes,
		Referrer:            p.Inviter,
	}
}
