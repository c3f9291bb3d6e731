package llm

import (
	"fmt"
	"strings"
)

const analyzePromptTemplate = `Analyze the following resume and job description comprehensively. Return:
1. A match percentage (0-100)
2. Technical skills found in both (programming languages, tools, frameworks)
3. Soft skills and qualifications found in both (leadership, communication)
4. Missing technical skills from job description
5. Missing qualifications and requirements from job description

Resume:
%s

Job Description:
%s

Format the response as valid JSON with this exact structure:
{
    "match_percentage": <number>,
    "matched_technical_skills": ["skill1", "skill2", ...],
    "matched_qualifications": ["qual1", "qual2", ...],
    "missing_technical_skills": ["skill1", "skill2", ...],
    "missing_qualifications": ["qual1", "qual2", ...]
}

Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`

const enhancePromptTemplate = `Enhance the following HTML resume by incorporating these skills/qualifications:
%s

Original Resume:
%s

Rules:
1. Maintain the HTML formatting and structure
2. Add skills naturally to relevant sections
3. Don't remove existing content
4. Keep the enhancement subtle and professional
5. Return the response in this JSON format:
{
    "enhanced_content": "The complete enhanced HTML content",
    "changes_made": ["List of specific changes made"],
    "html_preview": "The resume content converted to clean HTML for preview"
}

Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`

func analyzePrompt(resumeContent, jobDescription string) string {
	return fmt.Sprintf(analyzePromptTemplate, resumeContent, jobDescription)
}

func enhancePrompt(resumeContent string, skills []string) string {
	return fmt.Sprintf(enhancePromptTemplate, strings.Join(skills, ", "), resumeContent)
}
