package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" username ":    " anamoreno ",
			"delivery_type": " pickup ",
			"pickup_time":   " ",
			" ":             "ignored",
			"":              "ignored",
		}

		expected := map[string]string{
			"username":      "anamoreno",
			"delivery_type": "pickup",
			"pickup_time":   "",
		}

		actual := NormalizeStringMap(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{"  ": "x"}) != nil {
			t.Fatalf("expected nil when no keys survive trimming")
		}
	})
}
