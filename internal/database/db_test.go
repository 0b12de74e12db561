package database

import (
	"strings"
	"testing"
)

func TestStatementsSplitsSchema(t *testing.T) {
	stmts := Statements()
	if len(stmts) < 15 {
		t.Fatalf("got %d statements", len(stmts))
	}
	for i, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("statement %d is not idempotent: %.40q", i, s)
		}
		if !strings.HasSuffix(s, ";") {
			t.Errorf("statement %d not terminated", i)
		}
	}
}

func TestTicketContainerConstraintPresent(t *testing.T) {
	if !strings.Contains(schema, "chk_tickets_container CHECK (basket_user_id IS NULL OR sale_id IS NULL)") {
		t.Fatal("tickets must not be in a basket and a sale at once")
	}
}
