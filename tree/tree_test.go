package tree

import "testing"

func TestBuildRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := Build(Config{StartStreet: Flop, InitialPot: 0, InitialStack: 100}); err == nil {
		t.Fatal("expected error for non-positive pot")
	}
	if _, err := Build(Config{StartStreet: Flop, InitialPot: 10, InitialStack: 0}); err == nil {
		t.Fatal("expected error for non-positive stack")
	}
}

func TestTreeWellFormedness(t *testing.T) {
	t.Parallel()
	tr, err := Build(Config{StartStreet: River, InitialPot: 10, InitialStack: 50})
	if err != nil {
		t.Fatal(err)
	}

	reachable := make([]bool, len(tr.Nodes))
	var walk func(idx int)
	walk = func(idx int) {
		if reachable[idx] {
			return
		}
		reachable[idx] = true
		node := tr.Nodes[idx]
		if node.Kind == NodeAction {
			if len(node.Actions) == 0 {
				t.Errorf("action node %s has no actions", node.ID)
			}
			for _, a := range node.Actions {
				child := tr.Nodes[a.Child]
				if child.Pot < node.Pot {
					t.Errorf("pot decreased from %s (%d) to child (%d)", node.ID, node.Pot, child.Pot)
				}
				if child.Stack < 0 {
					t.Errorf("negative stack at child of %s", node.ID)
				}
				walk(a.Child)
			}
		}
	}
	walk(0)

	for i, n := range tr.Nodes {
		if !reachable[i] {
			t.Errorf("node %s (index %d) unreachable from root", n.ID, i)
		}
		if n.Kind == NodeAction {
			for _, a := range n.Actions {
				if tr.Nodes[a.Child].Kind != NodeAction && tr.Nodes[a.Child].Kind != NodeTerminal {
					t.Errorf("node %s has child with invalid kind", n.ID)
				}
			}
		}
	}
}

func TestTreeLeavesAreTerminal(t *testing.T) {
	t.Parallel()
	tr, err := Build(Config{StartStreet: Flop, InitialPot: 10, InitialStack: 30})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range tr.Nodes {
		if n.Kind == NodeAction && len(n.Actions) == 0 {
			t.Errorf("action node %s has no children (should be a terminal instead)", n.ID)
		}
	}
}

func TestFoldAlwaysAvailableWhenFacingBet(t *testing.T) {
	t.Parallel()
	tr, err := Build(Config{StartStreet: River, InitialPot: 10, InitialStack: 30})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range tr.Nodes {
		if n.Kind != NodeAction || n.FacingBet == 0 {
			continue
		}
		found := false
		for _, a := range n.Actions {
			if a.Kind == Fold {
				found = true
			}
		}
		if !found {
			t.Errorf("node %s faces a bet but has no fold action", n.ID)
		}
	}
}

func TestStreetAdvancesThroughFlopTurnRiver(t *testing.T) {
	t.Parallel()
	tr, err := Build(Config{StartStreet: Flop, InitialPot: 10, InitialStack: 30})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[Street]bool{}
	for _, n := range tr.Nodes {
		seen[n.Street] = true
	}
	if !seen[Flop] || !seen[Turn] || !seen[River] {
		t.Fatalf("expected all three streets reachable, got %+v", seen)
	}
}
