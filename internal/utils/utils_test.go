package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("acc")
	assert.True(t, strings.HasPrefix(id, "acc-"))
	assert.Len(t, id, 14)
	assert.NotEqual(t, id, GenerateID("acc"))
}

func TestGenerateAccountNumber(t *testing.T) {
	number := GenerateAccountNumber()
	require.Len(t, number, 12)
	assert.Equal(t, "91", number[:2])
	for _, c := range number {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestGenerateCRN(t *testing.T) {
	crn := GenerateCRN()
	require.Len(t, crn, 11)
	assert.Equal(t, "CRN", crn[:3])
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, CheckPassword("correct horse battery", hash))
	assert.False(t, CheckPassword("wrong password", hash))
}

func TestValidMpin(t *testing.T) {
	assert.True(t, ValidMpin("0000"))
	assert.True(t, ValidMpin("1234"))
	assert.False(t, ValidMpin("123"))
	assert.False(t, ValidMpin("12345"))
	assert.False(t, ValidMpin("12a4"))
	assert.False(t, ValidMpin(""))
}
