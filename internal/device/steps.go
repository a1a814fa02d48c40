package device

// Step is one instruction shown during a guided test.
type Step struct {
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
}

// StepEvent reports progress through the guided test.
type StepEvent struct {
	Index    int  `json:"index"`
	Total    int  `json:"total"`
	Step     Step `json:"step"`
	Progress int  `json:"progress"`
}

var steps = []Step{
	{
		Title:       "Step 1: Prepare Your Finger",
		Instruction: "Wash your hands with warm water and dry them. Clean your fingertip with an alcohol swab and let it air dry.",
	},
	{
		Title:       "Step 2: Collect the Sample",
		Instruction: "Use the lancet on the side of your fingertip. Gently squeeze to form a drop of blood and touch the cuvette tip to the drop.",
	},
	{
		Title:       "Step 3: Insert the Cuvette",
		Instruction: "Insert the filled cuvette into the DropCheck reader until it clicks into place.",
	},
	{
		Title:       "Step 4: Awaiting Results",
		Instruction: "Keep the reader still while the sample is analyzed. This takes a few seconds.",
	},
}

// Steps returns the guided test steps in order.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}
