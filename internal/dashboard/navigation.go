package dashboard

// PreviousDashboard moves the cursor back one position, wrapping from the
// first dashboard to the last. It does not navigate.
func (s *Store) PreviousDashboard() {
	_ = s.mutate(OpPrevious, FactCount|FactActive, func(cur State) (State, bool, error) {
		return State{Dashboards: cur.Dashboards, Active: previousIndex(cur.Active, len(cur.Dashboards))}, true, nil
	})
}

// NextDashboard moves the cursor forward one position, wrapping from the
// last dashboard to the first. It does not navigate.
func (s *Store) NextDashboard() {
	_ = s.mutate(OpNext, FactCount|FactActive, func(cur State) (State, bool, error) {
		return State{Dashboards: cur.Dashboards, Active: nextIndex(cur.Active, len(cur.Dashboards))}, true, nil
	})
}

// SetActiveDashboard moves the cursor to index. It does not navigate.
func (s *Store) SetActiveDashboard(index int) error {
	err := s.mutate(OpSetActive, FactActive, func(cur State) (State, bool, error) {
		if index < 0 || index >= len(cur.Dashboards) {
			return cur, false, &IndexError{Op: OpSetActive, Index: index, Len: len(cur.Dashboards)}
		}
		return State{Dashboards: cur.Dashboards, Active: index}, index != cur.Active, nil
	})
	if err != nil {
		s.logger.Error("invalid dashboard index", "op", OpSetActive, "index", index, "error", err)
	}
	return err
}

// NavigateToActive hands the active index to the navigator.
func (s *Store) NavigateToActive() {
	s.navigator.Navigate(s.ActiveIndex())
}

// NavigateTo hands index to the navigator after validating it. The cursor
// follows later, when routing reports the dashboard as shown.
func (s *Store) NavigateTo(index int) error {
	if n := s.Len(); index < 0 || index >= n {
		err := &IndexError{Op: "navigate", Index: index, Len: n}
		s.logger.Error("invalid dashboard index", "op", "navigate", "index", index, "error", err)
		return err
	}
	s.navigator.Navigate(index)
	return nil
}

// NavigateToNextDashboard navigates to the wrap-adjusted next dashboard.
func (s *Store) NavigateToNextDashboard() {
	st := s.state.Get()
	s.navigator.Navigate(nextIndex(st.Active, len(st.Dashboards)))
}

// NavigateToPreviousDashboard navigates to the wrap-adjusted previous
// dashboard.
func (s *Store) NavigateToPreviousDashboard() {
	st := s.state.Get()
	s.navigator.Navigate(previousIndex(st.Active, len(st.Dashboards)))
}

func nextIndex(active, n int) int {
	if active+1 > n-1 {
		return 0
	}
	return active + 1
}

func previousIndex(active, n int) int {
	if active-1 < 0 {
		return n - 1
	}
	return active - 1
}
