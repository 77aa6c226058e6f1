package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSport(t *testing.T) {
	for _, s := range AllSports() {
		parsed, err := ParseSport(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseSport("cricket")
	assert.ErrorIs(t, err, ErrUnknownSport)

	_, err = ParseSport("")
	assert.ErrorIs(t, err, ErrUnknownSport)
}

func TestPredictionValidate(t *testing.T) {
	valid := Prediction{AgentID: "a", Pick: "Home ML", Confidence: 0.5}
	assert.NoError(t, valid.Validate())

	boundary := Prediction{AgentID: "a", Pick: "Home ML", Confidence: 1.0}
	assert.NoError(t, boundary.Validate())

	tooHigh := Prediction{AgentID: "a", Pick: "Home ML", Confidence: 1.2}
	assert.ErrorIs(t, tooHigh.Validate(), ErrInvalidPrediction)

	negative := Prediction{AgentID: "a", Pick: "Home ML", Confidence: -0.1}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidPrediction)

	emptyPick := Prediction{AgentID: "a", Confidence: 0.5}
	assert.ErrorIs(t, emptyPick.Validate(), ErrInvalidPrediction)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "yankees vs red sox", NormalizeQuery("  Yankees   VS  Red Sox "))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestFingerprint(t *testing.T) {
	sports := []Sport{SportHockey, SportBaseball}

	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint("Yankees vs Red Sox", sports, "equal", "")
		b := Fingerprint("Yankees vs Red Sox", sports, "equal", "")
		assert.Equal(t, a, b)
	})

	t.Run("sport order does not matter", func(t *testing.T) {
		a := Fingerprint("q", []Sport{SportHockey, SportBaseball}, "equal", "")
		b := Fingerprint("q", []Sport{SportBaseball, SportHockey}, "equal", "")
		assert.Equal(t, a, b)
	})

	t.Run("whitespace and case are normalized", func(t *testing.T) {
		a := Fingerprint("Yankees  vs Red Sox", sports, "equal", "")
		b := Fingerprint("yankees vs red sox", sports, "equal", "")
		assert.Equal(t, a, b)
	})

	t.Run("strategy changes the key", func(t *testing.T) {
		a := Fingerprint("q", sports, "equal", "")
		b := Fingerprint("q", sports, "confidence", "")
		assert.NotEqual(t, a, b)
	})

	t.Run("user changes the key", func(t *testing.T) {
		a := Fingerprint("q", sports, "user_preference", "u1")
		b := Fingerprint("q", sports, "user_preference", "u2")
		assert.NotEqual(t, a, b)
	})

	t.Run("sport set changes the key", func(t *testing.T) {
		a := Fingerprint("q", []Sport{SportHockey}, "equal", "")
		b := Fingerprint("q", []Sport{SportHockey, SportBaseball}, "equal", "")
		assert.NotEqual(t, a, b)
	})
}
