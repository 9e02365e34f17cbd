package crawler

// In-page scripts evaluated through the Renderer. Each is a single
// expression so the renderer can marshal the result directly.

// dismissPopupsScript closes or hides platform dialogs before extraction
// and reports whether any visible dialog remains.
const dismissPopupsScript = `(function() {
	var closeButtons = document.querySelectorAll('.ui-dialog-close, .close, [aria-label="关闭"]');
	closeButtons.forEach(function(btn) {
		try { btn.click(); } catch (e) {}
	});
	var dialogs = document.querySelectorAll('.ui-dialog, .modal, .popup');
	dialogs.forEach(function(dialog) {
		dialog.style.display = 'none';
	});
	return document.querySelectorAll('.ui-dialog[style*="display: block"], .modal[style*="display: block"]').length === 0;
})()`

// scrollPageScript nudges lazy-rendered content into the DOM.
const scrollPageScript = `(function() {
	window.scrollTo(0, document.body.scrollHeight);
	return true;
})()`

// selectorExtractScript walks the known content containers in priority
// order and returns the first sufficiently long text, bypassing
// visibility quirks that DOM-snapshot queries can miss.
const selectorExtractScript = `(function() {
	var selectors = [
		'div.read-content',
		'div.chapter-content',
		'div.j_readContent',
		'.read-content',
		'.chapter-content',
		'div.content'
	];
	for (var i = 0; i < selectors.length; i++) {
		var elements = document.querySelectorAll(selectors[i]);
		for (var j = 0; j < elements.length; j++) {
			var text = elements[j].textContent || elements[j].innerText;
			if (text && text.trim().length > 500) {
				return text.trim();
			}
		}
	}
	return '';
})()`

// densestBlockScript selects the block element with the most text under
// an upper bound, requiring a minimum CJK proportion to reject chrome.
const densestBlockScript = `(function() {
	var allElements = document.querySelectorAll('div, article, section');
	var bestElement = null;
	var bestLength = 0;
	for (var i = 0; i < allElements.length; i++) {
		var text = (allElements[i].textContent || allElements[i].innerText || '').trim();
		if (text.length > bestLength && text.length < 30000) {
			var cjk = text.match(/[一-鿿]/g);
			if (cjk && cjk.length > text.length * 0.3) {
				bestLength = text.length;
				bestElement = allElements[i];
			}
		}
	}
	return bestElement ? (bestElement.textContent || bestElement.innerText).trim() : '';
})()`

// findChaptersScript enumerates candidate chapter anchors in document
// order, resolving hrefs and dropping navigation labels. Used as the
// backup when the DOM-snapshot scan yields nothing.
const findChaptersScript = `(function() {
	var chapters = [];
	var seen = {};
	var allLinks = document.getElementsByTagName('a');
	for (var i = 0; i < allLinks.length; i++) {
		var link = allLinks[i];
		var href = link.getAttribute('href') || '';
		var text = link.textContent.trim();
		if (!href || !text || text.length < 2) continue;
		var isChapter = href.indexOf('/chapter/') !== -1 || href.indexOf('read.qidian.com') !== -1;
		var isNav = text.indexOf('上一章') !== -1 ||
			text.indexOf('下一章') !== -1 ||
			text.indexOf('目录') !== -1 ||
			text.indexOf('开始阅读') !== -1;
		if (!isChapter || isNav) continue;
		if (href.indexOf('//') === 0) {
			href = 'https:' + href;
		} else if (href.indexOf('/') === 0) {
			href = 'https://www.qidian.com' + href;
		}
		if (seen[href]) continue;
		seen[href] = true;
		chapters.push({ url: href, display_text: text });
	}
	return chapters.slice(0, 30);
})()`

// authorLookupScript tries the known author containers and returns the
// first plausible name.
const authorLookupScript = `(function() {
	var selectors = [
		'a[href*="author"]',
		'.writer',
		'.author-name',
		'.book-info .author'
	];
	for (var i = 0; i < selectors.length; i++) {
		var elements = document.querySelectorAll(selectors[i]);
		for (var j = 0; j < elements.length; j++) {
			var text = elements[j].textContent.trim();
			if (text && text.length > 0 && text.length < 20) {
				return text;
			}
		}
	}
	return '';
})()`
