// Package validation registers Brazilian document and phone rules on top of
// go-playground/validator.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ufs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}

// New returns a validator with the cnpj, cpf, br_phone and br_uf tags registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool { return IsCNPJ(fl.Field().String()) })
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool { return IsCPF(fl.Field().String()) })
	_ = v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool { return IsPhone(fl.Field().String()) })
	_ = v.RegisterValidation("br_uf", func(fl validator.FieldLevel) bool { return ufs[strings.ToUpper(fl.Field().String())] })
	return v
}

// FieldErrors flattens validator errors into field -> message.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, e := range verrs {
		out[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return out
}

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSame(s string) bool {
	return strings.Count(s, s[:1]) == len(s)
}

// IsCNPJ checks length and both check digits. Punctuation is ignored.
func IsCNPJ(s string) bool {
	d := Digits(s)
	if len(d) != 14 || allSame(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:12], w1) == int(d[12]-'0') && checkDigit(d[:13], w2) == int(d[13]-'0')
}

// IsCPF checks length and both check digits. Punctuation is ignored.
func IsCPF(s string) bool {
	d := Digits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:9], w1) == int(d[9]-'0') && checkDigit(d[:10], w2) == int(d[10]-'0')
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// IsPhone accepts a Brazilian landline or mobile with area code, optionally
// prefixed with the 55 country code.
func IsPhone(s string) bool {
	d := Digits(s)
	if (len(d) == 12 || len(d) == 13) && strings.HasPrefix(d, "55") {
		d = d[2:]
	}
	if len(d) != 10 && len(d) != 11 {
		return false
	}
	if d[0] == '0' || d[1] == '0' {
		return false
	}
	// Mobile numbers carry a leading 9 after the area code.
	if len(d) == 11 && d[2] != '9' {
		return false
	}
	return true
}

// NormalizePhone returns the E.164 digits (55 + area code + number) expected by WhatsApp.
func NormalizePhone(s string) string {
	d := Digits(s)
	if len(d) == 10 || len(d) == 11 {
		return "55" + d
	}
	return d
}
