package evalrun

// Result scores one evaluated task. SuccessBehaviour uses test success
// as its baseline, tightened by content expectations when the task
// declares any.
type Result struct {
	TaskID           string `json:"task_id"`
	SuccessCompile   bool   `json:"success_compile"`
	SuccessTests     bool   `json:"success_tests"`
	SuccessBehaviour bool   `json:"success_behaviour"`
	SuccessStatic    bool   `json:"success_static"`
	Steps            int    `json:"steps"`
	Notes            string `json:"notes,omitempty"`
	ChatPath         string `json:"chat_path,omitempty"`
}
