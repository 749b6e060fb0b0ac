package enhance

// Each template carries exactly one marker of its kind so the scorer counts it once.
// %s is replaced by the subject (the primary keyword or the topic).

var questionTemplates = []string{
	"What would change if you applied this to your own %s work?",
	"Which part of %s matters most for your situation?",
	"Where does %s fit into the goals you already have?",
	"How would you measure progress with %s over the next month?",
}

var exampleTemplates = []string{
	"For example, a small team can apply one idea about %s and compare results after a week.",
	"For instance, a beginner might start with the simplest part of %s and build from there.",
	"Picture a project such as a short pilot, where %s is tested on one process first.",
	"For example, writing down a baseline before changing %s makes the gains easy to see.",
}

var ctaTemplates = []string{
	"Pick one step from this section and try it with %s this week.",
	"Start by listing where %s touches your current workflow.",
	"Take the next step and review your %s plan against this list.",
}

var experienceTemplates = []string{
	"In my experience, %s rewards steady iteration more than big rewrites.",
	"We've found that small, measured changes to %s hold up better over time.",
	"In our experience, teams that write down their %s decisions move faster later.",
	"I've seen %s projects succeed when the basics were done well first.",
}
