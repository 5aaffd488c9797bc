package service

// Prompt templates for question generation and answer grading. Generation
// prompts are difficulty-calibrated: level 1 asks for a binary recall
// question, level 5 for an exception-handling scenario where the standard
// protocol would be harmful.

const generationSystemPrompt = `You are a medical education content author. You write realistic clinical vignettes and questions grounded strictly in the provided guideline excerpts. You follow the requested output format exactly.`

const strictFormatReminder = `IMPORTANT: Your previous output could not be parsed. Respond again using EXACTLY the labels "Vignette:" and "Question:" on their own lines, in that order, with no preamble before "Vignette:".`

var levelPrompts = map[int]string{
	1: `You are creating a clinical scenario for a NOVICE hospitalist.

DIFFICULTY: Level 1 - Basic Protocol
GOAL: Test recall of standard guidelines

Based on this guideline excerpt:
{context}

Generate:
1. A 2-sentence clinical vignette describing a straightforward case
2. A BINARY question (Yes/No or True/False)
3. The correct answer with a brief explanation

FORMAT:
Vignette: [2 sentences]
Question: [Binary question]
Answer: [Yes/No]
Explanation: [1-2 sentences citing the guideline]

REQUIREMENTS:
- No distracting variables
- Clear-cut scenario that follows standard protocol
- Answer should be obvious from the guideline`,

	2: `You are creating a clinical scenario for a BEGINNER hospitalist.

DIFFICULTY: Level 2 - Basic Application
GOAL: Test understanding of first-line management

Based on this guideline excerpt:
{context}

Generate:
1. A 2-3 sentence clinical vignette
2. A multiple-choice question about the NEXT STEP
3. 4 answer choices (A, B, C, D) with one clearly correct

FORMAT:
Vignette: [2-3 sentences]
Question: What is the most appropriate next step?
A) [Option 1]
B) [Option 2]
C) [Option 3]
D) [Option 4]
Answer: [Letter]
Explanation: [2-3 sentences citing the guideline]`,

	3: `You are creating a clinical scenario for a PROFICIENT hospitalist.

DIFFICULTY: Level 3 - Intermediate Complexity
GOAL: Test reasoning with distracting information

Based on this guideline excerpt:
{context}

Generate:
1. A 3-4 sentence clinical vignette with ONE distracting finding
2. A question requiring analysis of which factor matters
3. A detailed explanation

FORMAT:
Vignette: [3-4 sentences including a red herring]
Question: [What is the most important factor in management?]
Answer: [Your reasoning]
Explanation: [3-4 sentences explaining why the distractor is irrelevant]`,

	4: `You are creating a clinical scenario for an ADVANCED hospitalist.

DIFFICULTY: Level 4 - Grey Zone
GOAL: Test judgment in scenarios with multiple defensible approaches

Based on this guideline excerpt:
{context}

Generate:
1. A 4-5 sentence complex vignette where 2 approaches are both reasonable
2. Ask which approach is PREFERRED according to the guideline
3. Explain the nuance

FORMAT:
Vignette: [4-5 sentences with competing considerations]
Question: Which management approach is preferred?
Option A: [First approach]
Option B: [Second approach]
Answer: [A or B]
Explanation: [Explain why one is preferred, acknowledging the other is defensible]`,

	5: `You are creating a clinical scenario for an EXPERT hospitalist.

DIFFICULTY: Level 5 - Exception Handling
GOAL: Test recognition of when standard protocol is risky

Based on this guideline excerpt (especially EXCEPTIONS and CONTRAINDICATIONS):
{context}

Generate:
1. A complex vignette where following standard protocol would be HARMFUL
2. Ask the learner to identify the risk
3. Explain the exception

FORMAT:
Vignette: [5-6 sentences with a subtle contraindication or exception]
Question: Why would the standard approach be problematic in this case?
Answer: [The key exception/contraindication]
Explanation: [Quote the specific warning from the guideline]

REQUIREMENTS:
- The standard answer should seem correct at first
- Include a subtle detail that makes it contraindicated
- MUST cite a specific exception, contraindication, or warning from the text`,
}

const gradingSystemPrompt = `You are a Senior Mentor Hospitalist evaluating a colleague's clinical reasoning.

You grade based on the COMPLETE JOB DESCRIPTION of a hospitalist, not just medical accuracy:

1. CLINICAL ACCURACY (0-4 points)
   - Correct diagnosis and treatment per guidelines
   - Evidence-based decision making
   - Appropriate risk stratification

2. RISK ASSESSMENT (0-3 points)
   - Identifies potential complications
   - Considers contraindications
   - Appropriate safety measures

3. COMMUNICATION (0-2 points)
   - Clear explanation of reasoning
   - Addresses patient/family communication needs
   - Appropriate consultation planning

4. RESOURCE STEWARDSHIP (0-1 point)
   - Cost-effective approach
   - Appropriate discharge planning
   - Avoids unnecessary tests/interventions

CRITICAL RULE: Even if clinically correct, if the answer fails in risk assessment, communication, or efficiency, you must mark it down.

Your response MUST be valid JSON in this exact format:
{
  "clinical_accuracy_score": <0-4>,
  "risk_assessment_score": <0-3>,
  "communication_score": <0-2>,
  "efficiency_score": <0-1>,
  "total_score": <0-10>,
  "feedback": "<2-3 sentences explaining the scores>",
  "strengths": ["<strength 1>", "<strength 2>"],
  "areas_for_improvement": ["<area 1>", "<area 2>"]
}`
