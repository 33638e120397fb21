package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const invitationSubject = "📩 Ton ami t’invite à rejoindre NonoTalk"

var invitationHTML = template.Must(template.New("invitation").Parse(`<div style="font-family:Arial, sans-serif; text-align:center; color:#333;">
  <img src="{{.BaseURL}}/logonono.png" alt="NonoTalk" width="90" style="margin-bottom:15px;">
  <h2 style="color:#6c4bff;">Ton ami {{.Inviter}} t’a invité à rejoindre NonoTalk 💜</h2>
  <p>Une application bienveillante où tu peux parler librement et en toute confidentialité.</p>
  <p>Rejoins-nous et commence à discuter avec Nono dès aujourd’hui 👇</p>
  <p><strong>Profite de +5 échanges grâce à l'invitation</strong></p>
  <a href="{{.SignupURL}}"
     style="background:#6c4bff; color:white; padding:12px 24px; border-radius:8px; text-decoration:none; display:inline-block; margin-top:10px;">
     Rejoindre NonoTalk 💬
  </a>
  <div style="margin-top:18px;">
    <img src="{{.BaseURL}}/assets/ai-avatar.png" alt="Nono" width="140" style="border-radius:12px;">
  </div>
  <p style="margin-top:20px; font-size:13px; color:#777;">
    Ce message t’a été envoyé par NonoTalk, toujours là pour t’écouter 💜
  </p>
</div>`))

// Invitation renders the referral email sent to a friend.
func Invitation(to, inviter, baseURL, signupURL string) (Message, error) {
	data := struct {
		Inviter   string
		BaseURL   string
		SignupURL string
	}{
		Inviter:   inviter,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SignupURL: signupURL,
	}

	var html bytes.Buffer
	if err := invitationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render invitation: %w", err)
	}

	text := fmt.Sprintf("Ton ami %s t’invite à rejoindre NonoTalk.\n"+
		"Profite de +5 échanges grâce à l’invitation.\n"+
		"Inscris-toi ici: %s\n", inviter, signupURL)

	return Message{To: to, Subject: invitationSubject, Text: text, HTML: html.String()}, nil
}
