// Package mpris exposes playback on the D-Bus session bus as an MPRIS
// media player, so desktop media keys and widgets can drive it.
package mpris

import (
	"regexp"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/abetube/internal/app/transport"
)

const (
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
	busPrefix   = "org.mpris.MediaPlayer2."

	noTrack = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
)

var invalidPathChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Surface is a transport.ControlSurface backed by MPRIS.
type Surface struct {
	conn     *dbus.Conn
	busName  string
	props    *prop.Properties
	player   *player
	closeMux sync.Once
}

// New claims org.mpris.MediaPlayer2.<identity> on the session bus and
// exports the root and player interfaces.
func New(identity string) (*Surface, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "connect session bus")
	}

	busName := busPrefix + invalidPathChars.ReplaceAllString(identity, "_")
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "request name %s", busName)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, errors.Newf("bus name %s already taken", busName)
	}

	p := newPlayer()
	if err := conn.Export(root{}, objectPath, rootIface); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "export root")
	}
	if err := conn.Export(p, objectPath, playerIface); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "export player")
	}

	props, err := prop.Export(conn, objectPath, propertyMap(identity))
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "export properties")
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootIface, Methods: introspect.Methods(root{}), Properties: props.Introspection(rootIface)},
			{Name: playerIface, Methods: introspect.Methods(p), Properties: props.Introspection(playerIface)},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "export introspection")
	}

	zlog.Info().Msgf("mpris: registered %s", busName)
	return &Surface{conn: conn, busName: busName, props: props, player: p}, nil
}

func propertyMap(identity string) prop.Map {
	ro := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	return prop.Map{
		rootIface: {
			"CanQuit":             ro(false),
			"CanRaise":            ro(false),
			"HasTrackList":        ro(false),
			"Identity":            ro(identity),
			"SupportedUriSchemes": ro([]string{}),
			"SupportedMimeTypes":  ro([]string{}),
		},
		playerIface: {
			"PlaybackStatus": ro(statusString(transport.PlaybackNone)),
			"Metadata":       ro(metadataMap(transport.Metadata{})),
			"Rate":           ro(1.0),
			"MinimumRate":    ro(1.0),
			"MaximumRate":    ro(1.0),
			"Volume":         ro(1.0),
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse},
			"CanGoNext":      ro(true),
			"CanGoPrevious":  ro(true),
			"CanPlay":        ro(true),
			"CanPause":       ro(true),
			"CanSeek":        ro(false),
			"CanControl":     ro(true),
		},
	}
}

func (s *Surface) SetMetadata(md transport.Metadata) error {
	s.props.SetMust(playerIface, "Metadata", metadataMap(md))
	return nil
}

func (s *Surface) SetPlaybackState(state transport.PlaybackState) error {
	s.props.SetMust(playerIface, "PlaybackStatus", statusString(state))
	return nil
}

func (s *Surface) Commands() <-chan transport.Command {
	return s.player.commands
}

// Close releases the bus name and disconnects.
func (s *Surface) Close() error {
	var err error
	s.closeMux.Do(func() {
		if _, rerr := s.conn.ReleaseName(s.busName); rerr != nil {
			zlog.Debug().Msgf("mpris: release %s: %v", s.busName, rerr)
		}
		err = s.conn.Close()
	})
	return err
}

// statusString maps to the MPRIS PlaybackStatus vocabulary.
func statusString(state transport.PlaybackState) string {
	switch state {
	case transport.PlaybackPlaying:
		return "Playing"
	case transport.PlaybackPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func metadataMap(md transport.Metadata) map[string]dbus.Variant {
	if md.IsEmpty() {
		return map[string]dbus.Variant{
			"mpris:trackid": dbus.MakeVariant(noTrack),
		}
	}
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(md.TrackID)),
		"xesam:title":   dbus.MakeVariant(md.Title),
		"xesam:artist":  dbus.MakeVariant([]string{md.Artist}),
	}
	if md.Length > 0 {
		m["mpris:length"] = dbus.MakeVariant(md.Length.Microseconds())
	}
	if len(md.Artwork) > 0 {
		// MPRIS carries a single art URL; the largest advertised size wins.
		m["mpris:artUrl"] = dbus.MakeVariant(md.Artwork[len(md.Artwork)-1].URL)
	}
	return m
}

func trackPath(id string) dbus.ObjectPath {
	if id == "" {
		return noTrack
	}
	return dbus.ObjectPath("/org/osa030/abetube/track/" + invalidPathChars.ReplaceAllString(id, "_"))
}

type root struct{}

func (root) Raise() *dbus.Error { return nil }
func (root) Quit() *dbus.Error  { return nil }

var errUnsupported = errors.New("not supported")
