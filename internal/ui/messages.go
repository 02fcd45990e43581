package ui

type panelMsg struct {
	State PanelState
}

type hideMsg struct {
	ID string
}

type clearMsg struct {
	ID string
}

type releaseMsg struct {
	ID string
}

type allDoneMsg struct{}
