package server

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

var pageTemplate = template.Must(template.New("console").Parse(consolePage))

func (s *Server) handleIndex(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := pageTemplate.Execute(c.Writer, map[string]any{
		"MapboxToken": s.mapboxToken,
	})
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// consolePage is the whole browser side of the console. It holds no
// state of its own: every action posts to /console/* and every render
// follows a state snapshot pushed over the websocket.
const consolePage = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Bornes Vélib - Paris</title>
{{if .MapboxToken}}
<link href="https://api.mapbox.com/mapbox-gl-js/v2.15.0/mapbox-gl.css" rel="stylesheet">
<script src="https://api.mapbox.com/mapbox-gl-js/v2.15.0/mapbox-gl.js"></script>
{{end}}
<style>
  body { font-family: Arial, sans-serif; margin: 0; }
  header { display: flex; align-items: center; gap: 12px; padding: 10px 16px; background: #273043; color: #fff; }
  header h1 { font-size: 18px; margin: 0; flex: 0 0 auto; }
  #map { width: 100%; height: calc(100vh - 52px); }
  .placeholder { display: flex; align-items: center; justify-content: center; height: calc(100vh - 52px); color: #666; flex-direction: column; }
  .banner { color: #ffb3b3; }
  #login { max-width: 320px; margin: 12vh auto; padding: 24px; border: 1px solid #ccc; border-radius: 6px; }
  #login input { display: block; width: 100%; margin: 8px 0; padding: 8px; box-sizing: border-box; }
  #login .error { color: #c0392b; }
  #popup { position: absolute; top: 70px; right: 16px; width: 260px; background: #fff; border: 1px solid #aaa; border-radius: 6px; padding: 12px; z-index: 5; }
  #popup label { display: block; font-size: 12px; margin-top: 6px; }
  #popup input, #popup select { width: 100%; box-sizing: border-box; }
  .hidden { display: none; }
  .actions { margin-top: 10px; display: flex; gap: 8px; }
</style>
</head>
<body>
<div id="app"></div>
<script>
const hasMap = {{if .MapboxToken}}true{{else}}false{{end}};
{{if .MapboxToken}}mapboxgl.accessToken = {{.MapboxToken}};{{end}}

let state = null;
let map = null;
let markers = [];

async function post(path, body) {
  const resp = await fetch('/console/' + path, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body || {}),
  });
  let data = null;
  try { data = await resp.json(); } catch (e) {}
  return {ok: resp.ok, status: resp.status, data: data};
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/console/ws');
  ws.onmessage = (ev) => { state = JSON.parse(ev.data); render(); };
  ws.onclose = () => setTimeout(connect, 1000);
}

function render() {
  if (!state) return;
  const app = document.getElementById('app');
  if (state.session !== 'authenticated') {
    map = null;
    app.innerHTML = loginView();
    return;
  }
  if (!document.getElementById('map-root')) {
    app.innerHTML = consoleView();
    initMap();
  }
  document.getElementById('banner').textContent = state.notice || (state.loading ? 'Chargement...' : '');
  renderMarkers();
  renderPopup();
}

function loginView() {
  return '<div id="login"><h1>Bornes Vélib</h1><p>Connexion requise</p>' +
    '<input id="username" placeholder="Nom d\'utilisateur">' +
    '<input id="password" type="password" placeholder="Mot de passe">' +
    '<div class="error" id="login-error"></div>' +
    '<button onclick="doLogin()">Se connecter</button></div>';
}

function consoleView() {
  const inner = hasMap
    ? '<div id="map"></div>'
    : '<div class="placeholder"><p>Configurez votre token Mapbox</p><p>MAPBOX_TOKEN=votre_token_ici</p></div>';
  return '<div id="map-root"><header><h1>Bornes Vélib - Paris</h1>' +
    '<form onsubmit="doSearch(event)"><input id="address" placeholder="Rechercher une adresse à Paris...">' +
    '<button type="submit">Rechercher</button></form>' +
    '<span class="banner" id="banner"></span>' +
    '<button style="margin-left:auto" onclick="doLogout()">Déconnexion</button></header>' +
    inner + '<div id="popup" class="hidden"></div></div>';
}

function initMap() {
  if (!hasMap) return;
  map = new mapboxgl.Map({
    container: 'map',
    style: 'mapbox://styles/mapbox/streets-v11',
    center: [state.viewport.longitude, state.viewport.latitude],
    zoom: state.viewport.zoom,
  });
  map.on('moveend', () => {
    const c = map.getCenter();
    post('viewport', {latitude: c.lat, longitude: c.lng, zoom: map.getZoom()});
  });
}

function renderMarkers() {
  if (!map) return;
  markers.forEach(m => m.remove());
  markers = (state.stations || []).map(st => {
    const el = document.createElement('div');
    el.textContent = '🚲';
    el.style.cursor = 'pointer';
    el.style.filter = st.status === 'Operative' ? 'none' : 'grayscale(1)';
    el.onclick = () => post('select', {id: st.id});
    return new mapboxgl.Marker(el).setLngLat([st.position.lon, st.position.lat]).addTo(map);
  });
}

function renderPopup() {
  const popup = document.getElementById('popup');
  if (!state.selected) { popup.classList.add('hidden'); return; }
  popup.classList.remove('hidden');
  const st = state.selected;
  if (!state.editing) {
    popup.innerHTML = '<h3>' + st.name + '</h3>' +
      '<p>ID : ' + st.id + '</p>' +
      '<p>Statut : ' + st.status + '</p>' +
      '<p>Capacité : ' + (st.capacity === null ? 'N/A' : st.capacity) + '</p>' +
      '<p>Vélos disponibles : ' + st.bikes_available + '</p>' +
      '<p>Position : ' + st.position.lat.toFixed(6) + ', ' + st.position.lon.toFixed(6) + '</p>' +
      '<div class="actions"><button onclick="post(\'edit\')">Modifier</button>' +
      '<button onclick="doDelete()">Supprimer</button>' +
      '<button onclick="post(\'deselect\')">Fermer</button></div>';
    return;
  }
  const d = state.draft;
  popup.innerHTML = '<h3>Modifier la station</h3>' +
    '<label>Nom</label><input id="d-name" value="' + d.name + '">' +
    '<label>Statut</label><select id="d-status">' +
    ['Operative', 'Out of service', 'Closed'].map(v =>
      '<option value="' + v + '"' + (v === d.status ? ' selected' : '') + '>' + v + '</option>').join('') +
    '</select>' +
    '<label>Capacité</label><input id="d-capacity" type="number" value="' + d.capacity + '">' +
    '<label>Vélos disponibles</label><input id="d-bikes" type="number" value="' + d.bikes_available + '">' +
    '<div class="actions"><button onclick="doSave()">Enregistrer</button>' +
    '<button onclick="post(\'cancel\')">Annuler</button></div>';
}

async function doLogin() {
  const result = await post('login', {
    username: document.getElementById('username').value,
    password: document.getElementById('password').value,
  });
  if (!result.ok) {
    document.getElementById('login-error').textContent = 'Identifiants incorrects';
  }
}

function doLogout() { post('logout'); }

async function doSearch(ev) {
  ev.preventDefault();
  const input = document.getElementById('address');
  await post('search', {address: input.value});
  input.value = '';
}

async function doSave() {
  const result = await post('save', {
    name: document.getElementById('d-name').value,
    status: document.getElementById('d-status').value,
    capacity: parseInt(document.getElementById('d-capacity').value) || 0,
    bikes_available: parseInt(document.getElementById('d-bikes').value) || 0,
  });
  if (!result.ok) alert('Erreur lors de la mise à jour');
}

async function doDelete() {
  const st = state.selected;
  if (!window.confirm('Êtes-vous sûr de vouloir supprimer la station "' + st.name + '" ?')) {
    post('delete', {confirm: false});
    return;
  }
  const result = await post('delete', {confirm: true});
  if (!result.ok) alert('Erreur lors de la suppression');
}

fetch('/console/state').then(r => r.json()).then(s => { state = s; render(); });
connect();
</script>
</body>
</html>`
