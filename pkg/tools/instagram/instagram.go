// Package instagram analyses public Instagram profiles and suggests organic growth steps.
package instagram

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"zeta/pkg/config"
	"zeta/pkg/tools"
)

const Name = "instagram"

var profileURL = regexp.MustCompile(`instagram\.com/([^/?#]+)`)

// Profile is the data payload for a profile analysis.
type Profile struct {
	Type        string   `json:"type"`
	Username    string   `json:"username"`
	FullName    string   `json:"fullName"`
	Bio         string   `json:"bio"`
	Followers   int64    `json:"followers"`
	Following   int64    `json:"following"`
	Posts       int64    `json:"posts"`
	IsVerified  bool     `json:"isVerified"`
	IsPrivate   bool     `json:"isPrivate"`
	ProfilePic  string   `json:"profilePic,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
	ContentTips []string `json:"contentTips"`
}

// Tool implements tools.Tool against the RapidAPI instagram120 endpoint.
type Tool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates the instagram capability.
func New(cfg config.EndpointConfig) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  tools.NewHTTPClient(cfg.TimeoutSeconds),
	}
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Instagram profil analizi ve organik büyüme önerileri"
}

func (t *Tool) Execute(ctx context.Context, params tools.Params) (tools.Result, error) {
	if t.apiKey == "" {
		return tools.Fail("RAPIDAPI_KEY tanımlı değil."), nil
	}

	username := ExtractUsername(params.String("query"))
	if username == "" {
		return tools.Fail("Geçerli bir Instagram kullanıcı adı veya linki girin."), nil
	}

	host := strings.TrimPrefix(strings.TrimPrefix(t.baseURL, "https://"), "http://")
	body, err := tools.PostJSON(ctx, t.client, t.baseURL, "/api/instagram/posts",
		map[string]string{"username": username, "maxId": ""},
		map[string]string{"x-rapidapi-host": host, "x-rapidapi-key": t.apiKey},
	)
	if err != nil {
		return tools.Fail("Instagram profili analiz edilemedi."), nil
	}

	data := gjson.ParseBytes(body)
	if !data.IsObject() || data.Get("error").Exists() {
		return tools.Fail("Profil bulunamadı veya gizli."), nil
	}

	profile := Profile{
		Type:        "instagram_profile",
		Username:    data.Get("username").String(),
		FullName:    data.Get("full_name").String(),
		Bio:         data.Get("biography").String(),
		Followers:   data.Get("follower_count").Int(),
		Following:   data.Get("following_count").Int(),
		Posts:       data.Get("media_count").Int(),
		IsVerified:  data.Get("is_verified").Bool(),
		IsPrivate:   data.Get("is_private").Bool(),
		ProfilePic:  data.Get("profile_pic_url").String(),
		ExternalURL: data.Get("external_url").String(),
	}
	profile.ContentTips = ContentTips(profile)

	return tools.OK(profile), nil
}

// ExtractUsername accepts a profile link or a handle with or without "@".
func ExtractUsername(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "instagram.com/") {
		match := profileURL.FindStringSubmatch(input)
		if match == nil {
			return ""
		}
		return match[1]
	}
	return strings.TrimSpace(strings.Replace(input, "@", "", 1))
}

// ContentTips derives growth suggestions from profile metrics.
func ContentTips(p Profile) []string {
	var tips []string

	following := p.Following
	if following == 0 {
		following = 1
	}
	if float64(p.Followers)/float64(following) < 1 {
		tips = append(tips, "📉 Takip ettiğin kişi sayısı fazla, takipçi/takip oranını düzelt")
	}
	if p.Posts < 10 {
		tips = append(tips, "📸 Daha fazla içerik paylaş, en az 12 gönderi olsun")
	}
	if p.Bio == "" {
		tips = append(tips, "📝 Bio ekle: kimsin, ne yapıyorsun kısaca anlat")
	}
	if p.ExternalURL == "" {
		tips = append(tips, "🔗 Bio'ya link ekle (website, WhatsApp, Linktree vb.)")
	}

	switch {
	case p.Followers < 1000:
		tips = append(tips,
			"🏷️ Her gönderide 5-10 niş hashtag kullan",
			"💬 Aynı nişteki hesaplarla etkileşime gir",
			"⏰ En aktif saatlerde paylaş (18:00-21:00)",
		)
	case p.Followers < 10000:
		tips = append(tips,
			"🎯 Reels paylaş, organik erişim çok daha yüksek",
			"📊 Instagram Insights'ı takip et",
			"🤝 Benzer hesaplarla işbirliği yap",
		)
	default:
		tips = append(tips,
			"💡 Sponsorlu içerik için markalarla iletişime geç",
			"📱 Story ve Reels kombinasyonu kullan",
		)
	}

	return tips
}
