package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

// Summary is the human-readable body of an alarm notification.
func Summary(rec Record) string {
	var b strings.Builder
	b.WriteString("Alarm")
	if rec.RunOnce {
		b.WriteString(" (run once)")
	}
	fmt.Fprintf(&b, " level %d/%d", rec.Level, rec.LevelMax)
	if rec.Message != "" {
		b.WriteString(": ")
		b.WriteString(rec.Message)
	}
	return b.String()
}

// Notification builds the message sent to recipient for rec.
//
//	<message to="..." id="..."><body>...</body>
//	  <alert open="1" runonce="0" level="2" levelmax="5" num="7" freq="60" escfreq="300" msg="..."/>
//	</message>
//
// Frequencies are whole seconds.
func Notification(rec Record, recipient, id string) *stanza.Element {
	msg := stanza.New(common.StanzaMessage).SetAttr("to", recipient)
	if id != "" {
		msg.SetAttr("id", id)
	}
	msg.NewChild("body").SetText(Summary(rec))
	msg.NewChild("alert").
		SetAttr("open", boolAttr(rec.Open)).
		SetAttr("runonce", boolAttr(rec.RunOnce)).
		SetAttr("level", strconv.Itoa(rec.Level)).
		SetAttr("levelmax", strconv.Itoa(rec.LevelMax)).
		SetAttr("num", strconv.Itoa(rec.ID)).
		SetAttr("freq", seconds(rec.Frequency)).
		SetAttr("escfreq", seconds(rec.EscalationFrequency)).
		SetAttr("msg", rec.Message)
	return msg
}

func boolAttr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
