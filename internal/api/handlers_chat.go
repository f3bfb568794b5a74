package api

import (
	"log"
	"net/http"
	"net/url"

	"github.com/kawaltani/kawaltani/internal/chat"
	"github.com/kawaltani/kawaltani/internal/models"
)

const (
	chatLoginPrompt = "Login untuk melihat dan menyimpan riwayat chat Anda."
	chatLoadFailed  = "Gagal memuat riwayat chat."
	chatSendFailed  = "Terjadi kesalahan saat memproses pesan."
	chatListFailed  = "Gagal memuat daftar chat."
)

type ChatPage struct {
	Page
	Groups   []chat.Group
	Count    int
	Selected string
	// Editing is the one session whose rename editor is open.
	Editing  string
	Messages []models.ChatMessage
	Draft    string
}

func chatURL(selected, edit string) string {
	q := url.Values{}
	if selected != "" {
		q.Set("chat", selected)
	}
	if edit != "" {
		q.Set("edit", edit)
	}
	if len(q) == 0 {
		return "/chatbot"
	}
	return "/chatbot?" + q.Encode()
}

// chatPage builds the chatbot page around categories, loading the selected
// session's messages.
func (s *Server) chatPage(r *http.Request, cats chat.Categories, selected, editing string) ChatPage {
	data := ChatPage{
		Page:     s.page("Chatbot", "chatbot"),
		Groups:   cats.Groups(),
		Count:    cats.Len(),
		Selected: selected,
		Editing:  editing,
	}
	if !data.LoggedIn {
		data.Notice = chatLoginPrompt
		return data
	}
	if selected == "" {
		return data
	}
	messages, err := s.chats.Messages(r.Context(), selected)
	if err != nil {
		log.Printf("api: chat history %q: %v", selected, err)
		data.Notice = chatLoadFailed
		return data
	}
	data.Messages = messages
	return data
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	cats, err := s.chats.List(r.Context())
	if unauthorized(w, r, err) {
		return
	}
	q := r.URL.Query()
	data := s.chatPage(r, cats, q.Get("chat"), q.Get("edit"))
	if err != nil {
		log.Printf("api: list chats: %v", err)
		data.Notice = chatListFailed
	}
	s.render(w, "chatbot.html", data)
}

// handleChatRename renames a session. When the renamed session was the
// selected one, the selection follows the new title. On failure the editor
// stays open with the error shown.
func (s *Server) handleChatRename(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	oldTitle := r.PostForm.Get("old")
	selected := r.PostForm.Get("selected")

	title, _, err := s.chats.Rename(r.Context(), oldTitle, r.PostForm.Get("new"))
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: rename chat %q: %v", oldTitle, err)
		cats, lerr := s.chats.List(r.Context())
		if lerr != nil {
			log.Printf("api: list chats: %v", lerr)
		}
		data := s.chatPage(r, cats, selected, oldTitle)
		data.Notice = chat.Notice(err)
		s.renderStatus(w, http.StatusUnprocessableEntity, "chatbot.html", data)
		return
	}
	if selected == oldTitle {
		selected = title
	}
	http.Redirect(w, r, chatURL(selected, ""), http.StatusSeeOther)
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	title := r.PostForm.Get("title")
	selected := r.PostForm.Get("selected")

	_, err := s.chats.Delete(r.Context(), title)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: delete chat %q: %v", title, err)
		cats, lerr := s.chats.List(r.Context())
		if lerr != nil {
			log.Printf("api: list chats: %v", lerr)
		}
		data := s.chatPage(r, cats, selected, "")
		data.Notice = chat.Notice(err)
		s.renderStatus(w, http.StatusBadGateway, "chatbot.html", data)
		return
	}
	if selected == title {
		selected = ""
	}
	http.Redirect(w, r, chatURL(selected, ""), http.StatusSeeOther)
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	title := r.PostForm.Get("title")
	message := r.PostForm.Get("message")

	reply, err := s.chats.Send(r.Context(), title, message)
	if unauthorized(w, r, err) {
		return
	}
	if err != nil {
		log.Printf("api: send chat: %v", err)
		cats, lerr := s.chats.List(r.Context())
		if lerr != nil {
			log.Printf("api: list chats: %v", lerr)
		}
		data := s.chatPage(r, cats, title, "")
		data.Notice = chatSendFailed
		data.Draft = message
		s.renderStatus(w, http.StatusBadGateway, "chatbot.html", data)
		return
	}
	http.Redirect(w, r, chatURL(reply.Title, ""), http.StatusSeeOther)
}
