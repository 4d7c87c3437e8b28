package env

import (
	"testing"
	"time"
)

func TestStringDefault(t *testing.T) {
	if got := String("TESTGENIE_ENV_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
	t.Setenv("TESTGENIE_ENV_SET", "value")
	if got := String("TESTGENIE_ENV_SET", "fallback"); got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestRequired(t *testing.T) {
	if _, err := Required("TESTGENIE_ENV_MISSING"); err == nil {
		t.Fatalf("expected error for missing env")
	}
	t.Setenv("TESTGENIE_ENV_CRED", "  secret  ")
	v, err := Required("TESTGENIE_ENV_CRED")
	if err != nil {
		t.Fatalf("Required() err=%v", err)
	}
	if v != "secret" {
		t.Fatalf("Required()=%q, want trimmed value", v)
	}
}

func TestStrings(t *testing.T) {
	def := []string{"http://localhost:5173"}
	if got := Strings("TESTGENIE_ENV_ORIGINS", def); len(got) != 1 || got[0] != def[0] {
		t.Fatalf("Strings() default mismatch: %v", got)
	}
	t.Setenv("TESTGENIE_ENV_ORIGINS", "http://a:1, http://b:2 ,")
	got := Strings("TESTGENIE_ENV_ORIGINS", def)
	if len(got) != 2 || got[0] != "http://a:1" || got[1] != "http://b:2" {
		t.Fatalf("Strings()=%v", got)
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration("TESTGENIE_ENV_DUR_UNSET", 30*time.Second)
	if err != nil || d != 30*time.Second {
		t.Fatalf("Duration()=%v err=%v", d, err)
	}
	t.Setenv("TESTGENIE_ENV_DUR", "250ms")
	d, err = Duration("TESTGENIE_ENV_DUR", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("Duration()=%v err=%v", d, err)
	}
	t.Setenv("TESTGENIE_ENV_DUR", "nonsense")
	if _, err := Duration("TESTGENIE_ENV_DUR", time.Second); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("TESTGENIE_ENV_INT", "24300")
	i, err := Int("TESTGENIE_ENV_INT", 0)
	if err != nil || i != 24300 {
		t.Fatalf("Int()=%d err=%v", i, err)
	}
}
