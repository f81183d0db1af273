package tools

import (
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PPGW_T_STR", "abc")
	t.Setenv("PPGW_T_INT", "12")
	t.Setenv("PPGW_T_BADINT", "x")
	t.Setenv("PPGW_T_BOOL", "Yes")
	t.Setenv("PPGW_T_DUR", "1500ms")
	t.Setenv("PPGW_T_LIST", " a, ,b ,")

	if GetEnv("PPGW_T_STR", "d") != "abc" || GetEnv("PPGW_T_NONE", "d") != "d" {
		t.Fatal("GetEnv")
	}
	if GetEnvInt("PPGW_T_INT", 1) != 12 || GetEnvInt("PPGW_T_BADINT", 1) != 1 {
		t.Fatal("GetEnvInt")
	}
	if !GetEnvBool("PPGW_T_BOOL", false) || GetEnvBool("PPGW_T_NONE", false) {
		t.Fatal("GetEnvBool")
	}
	if GetEnvDuration("PPGW_T_DUR", 0) != 1500*time.Millisecond {
		t.Fatal("GetEnvDuration")
	}
	l := GetEnvList("PPGW_T_LIST", nil)
	if len(l) != 2 || l[0] != "a" || l[1] != "b" {
		t.Fatalf("GetEnvList = %v", l)
	}
}
