package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCNPJ(t *testing.T) {
	assert.True(t, IsCNPJ("11.222.333/0001-81"))
	assert.True(t, IsCNPJ("11222333000181"))
	assert.False(t, IsCNPJ("11.222.333/0001-82"))
	assert.False(t, IsCNPJ("00000000000000"))
	assert.False(t, IsCNPJ("1122233300018"))
	assert.False(t, IsCNPJ(""))
}

func TestIsCPF(t *testing.T) {
	assert.True(t, IsCPF("529.982.247-25"))
	assert.False(t, IsCPF("529.982.247-24"))
	assert.False(t, IsCPF("111.111.111-11"))
}

func TestIsPhone(t *testing.T) {
	assert.True(t, IsPhone("(11) 98765-4321"))
	assert.True(t, IsPhone("+55 11 98765-4321"))
	assert.True(t, IsPhone("1134567890"))
	assert.False(t, IsPhone("(11) 88765-4321"))
	assert.False(t, IsPhone("12345"))
	assert.False(t, IsPhone("0134567890"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5511987654321", NormalizePhone("(11) 98765-4321"))
	assert.Equal(t, "5511987654321", NormalizePhone("+55 11 98765-4321"))
}

func TestNew_RegistersTags(t *testing.T) {
	type form struct {
		CNPJ  string `validate:"cnpj"`
		Phone string `validate:"br_phone"`
		UF    string `validate:"br_uf"`
	}
	v := New()

	assert.NoError(t, v.Struct(form{CNPJ: "11.222.333/0001-81", Phone: "11987654321", UF: "mt"}))

	err := v.Struct(form{CNPJ: "123", Phone: "1", UF: "XX"})
	fields := FieldErrors(err)
	assert.Len(t, fields, 3)
	assert.Contains(t, fields, "CNPJ")
}
