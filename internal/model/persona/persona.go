package persona

// Persona is one assistant variant the form can talk to, tied to a single
// business sub-process.
type Persona struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Title       string `json:"title" yaml:"title"`
	AssistantID string `json:"assistantId" yaml:"assistant_id"`
}

// Seed provides the sub-product assistants configured for the auto app team.
// Labels, titles and assistant ids are matched verbatim against the remote
// assistant configuration and the feedback sheet history.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "1p-outbound",
			Label:       ":racing_car:  1P OUTBOUND App",
			Title:       ":racing_car:  1P OUTBOUND AUTO APP ASSISTANT",
			AssistantID: "asst_0DNRoZlp8fEOLZHVIEtkclWQ",
		},
		{
			ID:          "1p-inbound",
			Label:       "1P INBOUND App",
			Title:       "1P INBOUND AUTO APP ASSISTANT",
			AssistantID: "asst_jRwTRKlGmLddeAPA8pVgjEGM",
		},
		{
			ID:          "3p-outbound",
			Label:       ":moneybag:3P OUTBOUND App",
			Title:       ":moneybag: 3P OUTBOUND APP ASSISTANT",
			AssistantID: "asst_fN62Ct3gP0suki42r5MPx27b",
		},
		{
			ID:          "3p-inbound",
			Label:       "3P INBOUND App",
			Title:       "3P INBOUND APP ASSISTANT",
			AssistantID: "asst_S0OVC8LuiP1IxPi94ybDG1KL",
		},
	}
}
