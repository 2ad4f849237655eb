package hrana

import (
	"context"
	"testing"
)

func TestStatementBindByIndexPadsWithNull(t *testing.T) {
	t.Parallel()

	stmt := NewStatement("SELECT ?, ?, ?")
	if err := stmt.BindByIndex(3, "c"); err != nil {
		t.Fatalf("BindByIndex: %v", err)
	}
	if len(stmt.posArgs) != 3 {
		t.Fatalf("posArgs length = %d, want 3", len(stmt.posArgs))
	}
	if stmt.posArgs[0].kind != KindNull || stmt.posArgs[1].kind != KindNull {
		t.Fatalf("expected padding NULLs, got %+v", stmt.posArgs)
	}
	if stmt.posArgs[2].kind != KindText || stmt.posArgs[2].text != "c" {
		t.Fatalf("posArgs[2] = %+v, want text %q", stmt.posArgs[2], "c")
	}
}

func TestStatementBindByIndexRejectsZero(t *testing.T) {
	t.Parallel()

	stmt := NewStatement("SELECT ?")
	if err := stmt.BindByIndex(0, 1); err == nil {
		t.Fatal("expected error for bind index 0")
	}
}

func TestStatementBindAllReplacesArgs(t *testing.T) {
	t.Parallel()

	stmt := NewStatement("SELECT ?, ?")
	if err := stmt.BindByIndex(1, "x"); err != nil {
		t.Fatalf("BindByIndex: %v", err)
	}
	if err := stmt.BindAll(1, 2); err != nil {
		t.Fatalf("BindAll: %v", err)
	}
	if len(stmt.posArgs) != 2 || stmt.posArgs[0].integer != 1 || stmt.posArgs[1].integer != 2 {
		t.Fatalf("BindAll did not replace args: %+v", stmt.posArgs)
	}
}

func TestStatementUnbindAllClears(t *testing.T) {
	t.Parallel()

	stmt := NewStatement("SELECT ?, :name")
	if err := stmt.BindByIndex(1, 1); err != nil {
		t.Fatalf("BindByIndex: %v", err)
	}
	if err := stmt.BindByName(":name", "x"); err != nil {
		t.Fatalf("BindByName: %v", err)
	}
	stmt.UnbindAll()
	if len(stmt.posArgs) != 0 || len(stmt.namedArg) != 0 {
		t.Fatalf("expected empty args after UnbindAll, got pos=%v named=%v", stmt.posArgs, stmt.namedArg)
	}
}

func TestStatementNamedArgsSortedDeterministic(t *testing.T) {
	t.Parallel()

	stmt := NewStatement("SELECT :b, :a, :c")
	for _, name := range []string{":b", ":a", ":c"} {
		if err := stmt.BindByName(name, 1); err != nil {
			t.Fatalf("BindByName(%s): %v", name, err)
		}
	}
	sorted := stmt.namedArgsSorted()
	if len(sorted) != 3 || sorted[0].Name != ":a" || sorted[1].Name != ":b" || sorted[2].Name != ":c" {
		t.Fatalf("expected lexical order, got %+v", sorted)
	}
}

func TestSqlCloseIdempotent(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version2)
	c := NewClient(ft, IntModeBigInt)
	sql, err := c.StoreSql(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("StoreSql: %v", err)
	}
	if err := sql.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sql.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestStatementFromClosedSqlFailsToWire(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version2)
	c := NewClient(ft, IntModeBigInt)
	sql, err := c.StoreSql(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("StoreSql: %v", err)
	}
	if err := sql.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stmt := NewStatementFromSql(sql)
	if _, err := stmt.toWire(c); err == nil {
		t.Fatal("expected ClientError for a closed Sql handle")
	} else if _, ok := err.(*ClientError); !ok {
		t.Fatalf("expected *ClientError, got %T: %v", err, err)
	}
}

func TestStatementFromCrossClientSqlFailsToWire(t *testing.T) {
	t.Parallel()

	ft1 := newFakeTransport(Version2)
	c1 := NewClient(ft1, IntModeBigInt)
	sql, err := c1.StoreSql(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("StoreSql: %v", err)
	}

	ft2 := newFakeTransport(Version2)
	c2 := NewClient(ft2, IntModeBigInt)

	stmt := NewStatementFromSql(sql)
	if _, err := stmt.toWire(c2); err == nil {
		t.Fatal("expected ClientError for a cross-client Sql handle")
	} else if _, ok := err.(*ClientError); !ok {
		t.Fatalf("expected *ClientError, got %T: %v", err, err)
	}

	// Using it on the client that actually owns it still works.
	if _, err := stmt.toWire(c1); err != nil {
		t.Fatalf("toWire on owning client: %v", err)
	}
}
