package core

import (
	"net/mail"
	"strings"
	"testing"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig()

	// every shipped template must parse from the embedded FS and render both
	// its text and HTML variants
	tests := []struct {
		template string
		data     interface{}
		want     []string
	}{
		{
			template: "welcome_guest",
			data: struct {
				Username  string
				ResetPath string
			}{"jane.doe_20260314150926", "/password-reset/abc/def"},
			want: []string{"Hi jane.doe_20260314150926,", conf.FrontendBaseURL + "/password-reset/abc/def"},
		},
		{
			template: "password_reset",
			data: struct {
				Username  string
				ResetPath string
			}{"jane", "/password-reset/abc/def"},
			want: []string{"jane", conf.FrontendBaseURL + "/password-reset/abc/def"},
		},
		{
			template: "enrollment_confirmation",
			data: struct {
				StudentName string
				CourseTitle string
			}{"Jane Doe", "Piano Pro"},
			want: []string{"Hi Jane Doe,", `"Piano Pro"`},
		},
		{
			template: "teacher_new_enrollment",
			data: struct {
				TeacherName string
				StudentName string
				CourseTitle string
			}{"Teacher", "Jane Doe", "Piano Pro"},
			want: []string{"Jane Doe", "Piano Pro"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			msg := EmailMessage{
				To:           []mail.Address{{Name: "Jane Doe", Address: "jane@test.cd"}},
				Subject:      "Test",
				TemplateName: tt.template,
				TemplateData: tt.data,
			}
			if err := msg.Render(conf); err != nil {
				t.Fatalf("Render() failed: %+v", err)
			}
			if msg.TextContent == "" || msg.HTMLContent == "" {
				t.Fatal("expected both text and HTML content")
			}
			if !msg.HasContent() {
				t.Error("expected HasContent()")
			}
			for _, want := range tt.want {
				if !strings.Contains(msg.TextContent, want) {
					t.Errorf("TextContent missing %q:\n%s", want, msg.TextContent)
				}
			}
			if !strings.Contains(msg.TextContent, conf.AppName) {
				t.Errorf("TextContent missing app signature:\n%s", msg.TextContent)
			}
		})
	}
}
