package hrana

import "testing"

func TestBatchExecuteSingleShot(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	ft.onDo = func(req StreamRequest) (StreamResponse, error) {
		return StreamResponse{
			Kind: req.Kind,
			BatchResult: &BatchResult{
				results: map[int]*StmtResult{0: {AffectedRowCount: 1}},
				errs:    map[int]*ResponseError{},
			},
		}, nil
	}
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	batch := s.NewBatch()
	step := batch.Step()
	if err := step.Run(NewStatement("INSERT INTO t VALUES (1)")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	res, err := batch.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r, ok := res.Result(step); !ok || r.AffectedRowCount != 1 {
		t.Fatalf("unexpected result: %+v, ok=%v", r, ok)
	}

	if _, err := batch.Execute(); err == nil {
		t.Fatal("expected error on second Execute of the same batch")
	}
}

func TestBatchStepRedefineRejected(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	batch := s.NewBatch()
	step := batch.Step()
	if err := step.Run(NewStatement("SELECT 1")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := step.Query(NewStatement("SELECT 2")); err == nil {
		t.Fatal("expected error redefining an already-defined step")
	}
}

func TestBatchStepConditionMustReferEarlierStep(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	batch := s.NewBatch()
	first := batch.Step()
	if err := first.Query(NewStatement("SELECT 1")); err != nil {
		t.Fatalf("Query: %v", err)
	}

	if err := first.Condition(Ok(0)); err == nil {
		t.Fatal("expected error: step 0 cannot condition on itself")
	}

	second := batch.Step()
	if err := second.Condition(Ok(first.Index())); err != nil {
		t.Fatalf("Condition referring to an earlier step should succeed: %v", err)
	}
}

func TestBatchStepConditionRequiresV3ForAutocommit(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version2)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	batch := s.NewBatch()
	first := batch.Step()
	if err := first.Run(NewStatement("SELECT 1")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	second := batch.Step()
	if err := second.Condition(IsAutocommit()); err == nil {
		t.Fatal("expected VersionError for is_autocommit condition under protocol v2")
	}
}

func TestBatchResultSkipped(t *testing.T) {
	t.Parallel()

	r := &BatchResult{
		results: map[int]*StmtResult{0: {}},
		errs:    map[int]*ResponseError{1: {Message: "boom"}},
	}
	skippedStep := &BatchStep{index: 2}
	ranStep := &BatchStep{index: 0}
	failedStep := &BatchStep{index: 1}

	if !r.Skipped(skippedStep) {
		t.Fatal("step 2 should be reported as skipped")
	}
	if r.Skipped(ranStep) {
		t.Fatal("step 0 should not be reported as skipped")
	}
	if r.Skipped(failedStep) {
		t.Fatal("step 1 should not be reported as skipped")
	}
	if _, ok := r.Error(failedStep); !ok {
		t.Fatal("expected an error for step 1")
	}
}

func TestBatchExecuteRejectsUndefinedStep(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	batch := s.NewBatch()
	batch.Step() // never defined

	if _, err := batch.Execute(); err == nil {
		t.Fatal("expected error for undefined batch step")
	}
}
